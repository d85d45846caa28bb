package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfierros/potledger/internal/domain"
)

// Share is one participant's piece of an expense distribution. It is
// decoded straight from request bodies, in the same shape the API
// returns recorded distributions.
type Share struct {
	ParticipantID uuid.UUID       `json:"participant_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// AddExpense records a shared cost. payer, if set, is the participant who
// fronted the cash and must be in the session. paidFromBank and
// paidFromRake are the portions covered straight from the pool; together
// they may not exceed the amount, and whatever remains must have a payer.
func AddExpense(s *domain.Session, amount decimal.Decimal, note string, payer *uuid.UUID, paidFromBank, paidFromRake decimal.Decimal) (*domain.Expense, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("expense amount %s: %w", amount, domain.ErrInvalidAmount)
	}
	if paidFromBank.Sign() < 0 || paidFromRake.Sign() < 0 {
		return nil, fmt.Errorf("pool portion: %w", domain.ErrInvalidAmount)
	}
	covered := paidFromBank.Add(paidFromRake)
	if covered.GreaterThan(amount) {
		return nil, fmt.Errorf("pool portion %s over amount %s: %w", covered, amount, domain.ErrInvalidAmount)
	}
	if payer != nil && s.Participant(*payer) == nil {
		return nil, fmt.Errorf("payer %s: %w", *payer, domain.ErrParticipantNotInSession)
	}
	if payer == nil && covered.LessThan(amount) {
		return nil, fmt.Errorf("unfunded expense remainder %s: %w", amount.Sub(covered), domain.ErrInvalidAmount)
	}

	e := &domain.Expense{
		ID:           uuid.New(),
		Amount:       amount,
		Note:         note,
		PayerID:      payer,
		PaidFromBank: paidFromBank,
		PaidFromRake: paidFromRake,
		CreatedAt:    time.Now().UTC(),
	}
	s.Expenses = append(s.Expenses, e)
	return e, nil
}

// Distribute replaces an expense's share set atomically. Every share must
// name a current participant and carry a positive amount, and the shares
// may not sum past the distributable amount. On any failure the existing
// distribution is left untouched.
func Distribute(s *domain.Session, expenseID uuid.UUID, shares []Share) error {
	e := s.Expense(expenseID)
	if e == nil {
		return fmt.Errorf("expense %s: %w", expenseID, domain.ErrNotFound)
	}

	total := decimal.Zero
	next := make([]domain.ExpenseDistribution, 0, len(shares))
	for _, sh := range shares {
		if sh.Amount.Sign() <= 0 {
			return fmt.Errorf("share %s: %w", sh.Amount, domain.ErrInvalidAmount)
		}
		if s.Participant(sh.ParticipantID) == nil {
			return fmt.Errorf("share for %s: %w", sh.ParticipantID, domain.ErrParticipantNotInSession)
		}
		total = total.Add(sh.Amount)
		next = append(next, domain.ExpenseDistribution{
			ParticipantID: sh.ParticipantID,
			Amount:        sh.Amount,
		})
	}
	if total.GreaterThan(e.Distributable()) {
		return fmt.Errorf("shares %s over distributable %s: %w", total, e.Distributable(), domain.ErrOverDistributed)
	}

	e.Distributions = next
	return nil
}

// RemoveExpense deletes an expense and its distribution set.
func RemoveExpense(s *domain.Session, expenseID uuid.UUID) error {
	for i, e := range s.Expenses {
		if e.ID == expenseID {
			s.Expenses = append(s.Expenses[:i], s.Expenses[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("expense %s: %w", expenseID, domain.ErrNotFound)
}
