// Package settle computes the final money transfers that zero out a
// session. Calculate is a pure function of the session snapshot: no
// hidden state, deterministic output, typed refusal when the books do
// not balance.
package settle

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfierros/potledger/internal/domain"
	"github.com/mfierros/potledger/internal/session"
)

// Calculate derives every participant's monetary net, settles as much as
// the bank already mediates, and clears the remainder with a minimal set
// of direct transfers. It refuses with ErrUndistributedExpense while an
// expense's shares do not cover it, and with ErrUnbalancedLedger when the
// chip log does not sum to zero across the session. A player still
// seated with a live stack fails that same check, since their chips are
// not yet anyone's winnings.
func Calculate(s *domain.Session) (*domain.SettlementResult, error) {
	for _, e := range s.Expenses {
		if !e.FullyDistributed() {
			return nil, fmt.Errorf("expense %q short by %s: %w",
				e.Note, e.Distributable().Sub(e.DistributedTotal()), domain.ErrUndistributedExpense)
		}
	}

	var chipSum int64
	for _, p := range s.Participants {
		chipSum += p.Profit()
	}
	if chipSum != 0 {
		return nil, fmt.Errorf("chip profits sum to %d: %w", chipSum, domain.ErrUnbalancedLedger)
	}

	nets := make(map[uuid.UUID]decimal.Decimal, len(s.Participants))
	for _, p := range s.Participants {
		nets[p.ID] = decimal.NewFromInt(p.Profit()).Mul(s.ChipValue)
	}
	// Fold expenses in exactly once per participant: every share is owed,
	// every fronted advance is credited back in full. A payer with a share
	// of their own gets both terms.
	for _, e := range s.Expenses {
		for _, d := range e.Distributions {
			if n, ok := nets[d.ParticipantID]; ok {
				nets[d.ParticipantID] = n.Sub(d.Amount)
			}
		}
		if e.PayerID != nil {
			if n, ok := nets[*e.PayerID]; ok {
				nets[*e.PayerID] = n.Add(e.Distributable())
			}
		}
	}

	result := &domain.SettlementResult{}
	for _, p := range sortedByID(s.Participants) {
		result.Balances = append(result.Balances, domain.PlayerBalance{
			ParticipantID: p.ID,
			Name:          p.Name,
			Net:           nets[p.ID],
		})
	}

	// Bank mediation: each exited player's chip obligation becomes one
	// payout or one repayment. What the bank has already moved, plus
	// these transfers, leaves only expense remainders for direct netting.
	// A seated player's deposits stay with the bank until they leave, so
	// their bank activity is not folded here.
	residuals := make(map[uuid.UUID]decimal.Decimal, len(s.Participants))
	for _, p := range sortedByID(s.Participants) {
		residual := nets[p.ID]
		if s.Bank != nil && !p.InGame {
			deposited, withdrawn := session.Contributions(s.Bank, p.ID)
			bankOwes, playerOwes := session.Obligation(s, p)
			residual = residual.Add(deposited).Sub(withdrawn).Sub(bankOwes).Add(playerOwes)

			pid := p.ID
			if bankOwes.Sign() > 0 {
				result.BankTransfers = append(result.BankTransfers, domain.SettlementTransfer{
					SessionID: s.ID,
					ToID:      &pid,
					Amount:    bankOwes,
					Kind:      domain.BankToPlayer,
					Note:      fmt.Sprintf("bank pays out %s", p.Name),
				})
			} else if playerOwes.Sign() > 0 {
				result.ReturnTransfers = append(result.ReturnTransfers, domain.SettlementTransfer{
					SessionID: s.ID,
					FromID:    &pid,
					Amount:    playerOwes,
					Kind:      domain.PlayerToBank,
					Note:      fmt.Sprintf("%s repays bank", p.Name),
				})
			}
		}
		residuals[p.ID] = residual
	}

	sum := decimal.Zero
	for _, r := range residuals {
		sum = sum.Add(r)
	}
	if sum.Sign() != 0 {
		return nil, fmt.Errorf("residual balances sum to %s: %w", sum, domain.ErrUnbalancedLedger)
	}

	result.PlayerTransfers = netResiduals(s, residuals)
	return result, nil
}

func sortedByID(ps []*domain.Participant) []*domain.Participant {
	out := make([]*domain.Participant, len(ps))
	copy(out, ps)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
