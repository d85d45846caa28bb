package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfierros/potledger/internal/domain"
)

// EnsureBank returns the session bank, creating it on first use. The bank
// only exists once some physical cash actually moves.
func EnsureBank(s *domain.Session) *domain.SessionBank {
	if s.Bank == nil {
		s.Bank = &domain.SessionBank{CreatedAt: time.Now().UTC()}
	}
	return s.Bank
}

// RecordBankEntry appends a cash movement to the bank's log, creating the
// bank lazily. participant is required for deposits and withdrawals and
// absent for pool-level entries (tips, expense payments paid straight
// from the pool). expense links an expense-payment entry to the expense
// it settles.
func RecordBankEntry(s *domain.Session, kind domain.BankEntryKind, amount decimal.Decimal, note string, participant, expense *uuid.UUID) (*domain.BankLedgerEntry, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("bank amount %s: %w", amount, domain.ErrInvalidAmount)
	}
	switch kind {
	case domain.BankDeposit, domain.BankWithdrawal:
		if participant == nil {
			return nil, fmt.Errorf("%s needs a participant: %w", kind, domain.ErrParticipantNotInSession)
		}
	case domain.BankExpensePayment, domain.BankTipPayment:
	default:
		return nil, fmt.Errorf("bank entry kind %q: %w", kind, domain.ErrInvalidAmount)
	}
	if participant != nil && s.Participant(*participant) == nil {
		return nil, fmt.Errorf("participant %s: %w", *participant, domain.ErrParticipantNotInSession)
	}
	if expense != nil && s.Expense(*expense) == nil {
		return nil, fmt.Errorf("expense %s: %w", *expense, domain.ErrNotFound)
	}

	bank := EnsureBank(s)
	if bank.Closed {
		return nil, fmt.Errorf("record %s: %w", kind, domain.ErrBankClosed)
	}

	entry := domain.BankLedgerEntry{
		ID:            uuid.New(),
		Kind:          kind,
		Amount:        amount,
		Note:          note,
		ParticipantID: participant,
		ExpenseID:     expense,
		CreatedAt:     time.Now().UTC(),
	}
	bank.Entries = append(bank.Entries, entry)
	return &entry, nil
}

// ConfigureBank sets the bank manager and the informational cash target.
// The manager is a weak reference: it must currently be in the session,
// but the bank survives the manager's later removal.
func ConfigureBank(s *domain.Session, manager *uuid.UUID, expectedTotal decimal.Decimal) (*domain.SessionBank, error) {
	if manager != nil && s.Participant(*manager) == nil {
		return nil, fmt.Errorf("manager %s: %w", *manager, domain.ErrParticipantNotInSession)
	}
	if expectedTotal.Sign() < 0 {
		return nil, fmt.Errorf("expected total %s: %w", expectedTotal, domain.ErrInvalidAmount)
	}
	bank := EnsureBank(s)
	bank.ManagerID = manager
	bank.ExpectedTotal = expectedTotal
	return bank, nil
}

// CloseBank seals the bank against further entries. It refuses while any
// player who has left the game still owes the bank or is owed by it.
func CloseBank(s *domain.Session) error {
	if s.Bank == nil {
		return fmt.Errorf("bank: %w", domain.ErrNotFound)
	}
	if s.Bank.Closed {
		return nil
	}
	for _, p := range s.Participants {
		owes, owed := Obligation(s, p)
		if owes.Sign() != 0 || owed.Sign() != 0 {
			return fmt.Errorf("player %s unsettled: %w", p.Name, domain.ErrOutstandingBalance)
		}
	}
	now := time.Now().UTC()
	s.Bank.Closed = true
	s.Bank.ClosedAt = &now
	return nil
}

// ReopenBank clears the closed flag unconditionally. Operator override.
func ReopenBank(s *domain.Session) error {
	if s.Bank == nil {
		return fmt.Errorf("bank: %w", domain.ErrNotFound)
	}
	s.Bank.Closed = false
	s.Bank.ClosedAt = nil
	return nil
}

// Contributions folds the bank log for one participant: total deposited
// and total withdrawn, in cash.
func Contributions(b *domain.SessionBank, participantID uuid.UUID) (deposited, withdrawn decimal.Decimal) {
	deposited, withdrawn = decimal.Zero, decimal.Zero
	if b == nil {
		return
	}
	for _, e := range b.Entries {
		if e.ParticipantID == nil || *e.ParticipantID != participantID {
			continue
		}
		switch e.Kind {
		case domain.BankDeposit:
			deposited = deposited.Add(e.Amount)
		case domain.BankWithdrawal:
			withdrawn = withdrawn.Add(e.Amount)
		}
	}
	return
}

// Obligation reports how much the bank owes the player and how much the
// player owes the bank, in cash. Only a player who has left the game can
// carry an obligation; a live stack owes nothing yet. The two amounts are
// complementary: bankOwes is derived first and playerOwes only when it is
// zero, so a player can never simultaneously owe and be owed.
func Obligation(s *domain.Session, p *domain.Participant) (bankOwes, playerOwes decimal.Decimal) {
	bankOwes, playerOwes = decimal.Zero, decimal.Zero
	if p.InGame || s.Bank == nil {
		return
	}
	profitCash := decimal.NewFromInt(p.Profit()).Mul(s.ChipValue)
	deposited, withdrawn := Contributions(s.Bank, p.ID)
	net := profitCash.Add(deposited).Sub(withdrawn)

	if net.Sign() > 0 {
		bankOwes = net
		return
	}
	playerOwes = net.Neg()
	return
}
