package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind classifies a chip movement in a participant's ledger.
type EntryKind string

const (
	EntryBuyIn   EntryKind = "buy_in"
	EntryAddOn   EntryKind = "add_on"
	EntryCashOut EntryKind = "cash_out"
)

// LedgerEntry is one row of a participant's append-only chip log.
// Immutable once recorded; the only mutation is explicit deletion.
type LedgerEntry struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Kind          EntryKind `json:"kind"`
	Chips         int64     `json:"chips"`
	CreatedAt     time.Time `json:"created_at"`
}

// Participant is a player in a session. Entries is the authoritative
// record of their chip movements; no total is stored, every total is a
// fold over Entries.
type Participant struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	InGame    bool          `json:"in_game"`
	Entries   []LedgerEntry `json:"entries"`
	CreatedAt time.Time     `json:"created_at"`
}

// BuyInTotal is the sum of buy-in and add-on chips.
func (p *Participant) BuyInTotal() int64 {
	var total int64
	for _, e := range p.Entries {
		if e.Kind == EntryBuyIn || e.Kind == EntryAddOn {
			total += e.Chips
		}
	}
	return total
}

// CashOutTotal is the sum of all cash-out entries. When a player rebuys
// after cashing out, the rebuy is a fresh buy-in entry, so every cash-out
// counts.
func (p *Participant) CashOutTotal() int64 {
	var total int64
	for _, e := range p.Entries {
		if e.Kind == EntryCashOut {
			total += e.Chips
		}
	}
	return total
}

// Profit is cash-out minus buy-in, in chips.
func (p *Participant) Profit() int64 {
	return p.CashOutTotal() - p.BuyInTotal()
}

// Balance is the live stack still on the table. Zero once the player
// has left; chips only matter while seated.
func (p *Participant) Balance() int64 {
	if !p.InGame {
		return 0
	}
	return p.BuyInTotal() - p.CashOutTotal()
}

// ExpenseDistribution records one participant's obligated share of an
// expense. It moves no money by itself; it is an input to settlement.
type ExpenseDistribution struct {
	ParticipantID uuid.UUID       `json:"participant_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// Expense is a shared session cost (food, dealer, venue). PayerID is the
// participant who fronted the cash, if any; PaidFromBank and PaidFromRake
// are portions covered straight from the pool and therefore owed by nobody.
type Expense struct {
	ID            uuid.UUID             `json:"id"`
	Amount        decimal.Decimal       `json:"amount"`
	Note          string                `json:"note"`
	PayerID       *uuid.UUID            `json:"payer_id,omitempty"`
	PaidFromBank  decimal.Decimal       `json:"paid_from_bank"`
	PaidFromRake  decimal.Decimal       `json:"paid_from_rake"`
	Distributions []ExpenseDistribution `json:"distributions"`
	CreatedAt     time.Time             `json:"created_at"`
}

// Distributable is the portion of the expense that participants owe:
// the full amount minus whatever the bank or the rake already covered.
func (e *Expense) Distributable() decimal.Decimal {
	return e.Amount.Sub(e.PaidFromBank).Sub(e.PaidFromRake)
}

// DistributedTotal sums the recorded shares.
func (e *Expense) DistributedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range e.Distributions {
		total = total.Add(d.Amount)
	}
	return total
}

// FullyDistributed reports whether the shares cover the distributable
// amount. An expense that fails this blocks settlement.
func (e *Expense) FullyDistributed() bool {
	return e.DistributedTotal().Equal(e.Distributable())
}

// BankEntryKind classifies a physical cash movement in the session bank.
type BankEntryKind string

const (
	BankDeposit        BankEntryKind = "deposit"
	BankWithdrawal     BankEntryKind = "withdrawal"
	BankExpensePayment BankEntryKind = "expense_payment"
	BankTipPayment     BankEntryKind = "tip_payment"
)

// Outgoing reports whether the entry kind takes cash out of the pool.
func (k BankEntryKind) Outgoing() bool {
	return k == BankWithdrawal || k == BankExpensePayment || k == BankTipPayment
}

// BankLedgerEntry is one row of the bank's append-only cash log.
// ParticipantID is nil for pool-level entries (tips, expense payments);
// ExpenseID links an expense-payment entry to the expense it settled.
type BankLedgerEntry struct {
	ID            uuid.UUID       `json:"id"`
	Kind          BankEntryKind   `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Note          string          `json:"note"`
	ParticipantID *uuid.UUID      `json:"participant_id,omitempty"`
	ExpenseID     *uuid.UUID      `json:"expense_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SessionBank is the shared cash pool for one session. ManagerID is a weak
// reference: reassigning or removing the manager never deletes the bank.
type SessionBank struct {
	ManagerID     *uuid.UUID        `json:"manager_id,omitempty"`
	Closed        bool              `json:"closed"`
	ClosedAt      *time.Time        `json:"closed_at,omitempty"`
	ExpectedTotal decimal.Decimal   `json:"expected_total"`
	Entries       []BankLedgerEntry `json:"entries"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TotalDeposited folds the incoming entries.
func (b *SessionBank) TotalDeposited() decimal.Decimal {
	total := decimal.Zero
	for _, e := range b.Entries {
		if !e.Kind.Outgoing() {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// TotalWithdrawn folds the outgoing entries (withdrawals, expense and tip
// payments).
func (b *SessionBank) TotalWithdrawn() decimal.Decimal {
	total := decimal.Zero
	for _, e := range b.Entries {
		if e.Kind.Outgoing() {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// NetBalance is the cash currently sitting in the pool.
func (b *SessionBank) NetBalance() decimal.Decimal {
	return b.TotalDeposited().Sub(b.TotalWithdrawn())
}

// Session is the aggregate root: participants with their chip logs, shared
// expenses, and the optional cash bank. ChipValue converts chips to cash.
type Session struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	ChipValue    decimal.Decimal `json:"chip_value"`
	Participants []*Participant  `json:"participants"`
	Expenses     []*Expense      `json:"expenses"`
	Bank         *SessionBank    `json:"bank,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Participant finds a session participant by id, or nil.
func (s *Session) Participant(id uuid.UUID) *Participant {
	for _, p := range s.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Expense finds a session expense by id, or nil.
func (s *Session) Expense(id uuid.UUID) *Expense {
	for _, e := range s.Expenses {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// TransferKind classifies a settlement transfer by who pays whom.
type TransferKind string

const (
	BankToPlayer   TransferKind = "bank_to_player"
	PlayerToBank   TransferKind = "player_to_bank"
	PlayerToPlayer TransferKind = "player_to_player"
)

// SettlementTransfer is one concrete money movement closing out the
// session. A nil FromID means the bank pays; a nil ToID means the bank
// receives. Amounts never change after creation; only Completed toggles.
type SettlementTransfer struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	FromID    *uuid.UUID      `json:"from_id,omitempty"`
	ToID      *uuid.UUID      `json:"to_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      TransferKind    `json:"kind"`
	Note      string          `json:"note"`
	Completed bool            `json:"completed"`
	CreatedAt time.Time       `json:"created_at"`
}

// PlayerBalance is one participant's monetary net at settlement time.
type PlayerBalance struct {
	ParticipantID uuid.UUID       `json:"participant_id"`
	Name          string          `json:"name"`
	Net           decimal.Decimal `json:"net"`
}

// SettlementResult is the calculator's complete output: per-player nets,
// bank payouts, repayments into the bank, and the direct transfers that
// clear whatever the bank did not mediate.
type SettlementResult struct {
	Balances        []PlayerBalance      `json:"balances"`
	BankTransfers   []SettlementTransfer `json:"bank_transfers"`
	ReturnTransfers []SettlementTransfer `json:"return_transfers"`
	PlayerTransfers []SettlementTransfer `json:"player_transfers"`
}
