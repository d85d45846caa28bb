package domain

import "errors"

// Sentinel errors for the accounting core. Handlers map these to HTTP
// status codes; services wrap them with context via fmt.Errorf and %w.
var (
	// ErrInvalidAmount rejects a non-positive amount where a positive one
	// is required, or a negative one where zero is allowed.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrBankClosed rejects new entries on a closed bank.
	ErrBankClosed = errors.New("bank is closed")

	// ErrOutstandingBalance refuses to close a bank while money is still
	// owed to or by a player who has left the game.
	ErrOutstandingBalance = errors.New("bank has outstanding balance")

	// ErrUnbalancedLedger means the chip log does not sum to zero across
	// the session. Settlement surfaces this instead of producing a result.
	ErrUnbalancedLedger = errors.New("ledger does not balance")

	// ErrUndistributedExpense means an expense's shares do not cover its
	// distributable amount; settlement refuses until it is resolved.
	ErrUndistributedExpense = errors.New("expense not fully distributed")

	// ErrNotFound covers lookups of sessions, participants, entries,
	// expenses, and transfers that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrParticipantNotInSession rejects a distribution share or bank
	// entry naming someone who is not part of the session.
	ErrParticipantNotInSession = errors.New("participant not in session")

	// ErrHasTransfers rejects deleting a participant still referenced by
	// unsettled transfers.
	ErrHasTransfers = errors.New("participant has unsettled transfers")

	// ErrOverDistributed rejects distribution shares summing past the
	// expense's distributable amount.
	ErrOverDistributed = errors.New("distribution exceeds expense amount")
)
