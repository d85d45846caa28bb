package settle

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfierros/potledger/internal/domain"
)

type side struct {
	id     uuid.UUID
	name   string
	amount decimal.Decimal
}

// netResiduals clears the balances the bank did not mediate with direct
// player-to-player transfers. Greedy largest-creditor against
// largest-debtor: each match extinguishes at least one side, so n
// non-zero balances settle in at most n-1 transfers. Ties break on
// ascending participant id, which makes recomputation reproducible.
func netResiduals(s *domain.Session, residuals map[uuid.UUID]decimal.Decimal) []domain.SettlementTransfer {
	var creditors, debtors []side
	for _, p := range s.Participants {
		r := residuals[p.ID]
		switch {
		case r.Sign() > 0:
			creditors = append(creditors, side{id: p.ID, name: p.Name, amount: r})
		case r.Sign() < 0:
			debtors = append(debtors, side{id: p.ID, name: p.Name, amount: r.Neg()})
		}
	}
	sortSides(creditors)
	sortSides(debtors)

	var transfers []domain.SettlementTransfer
	for len(creditors) > 0 && len(debtors) > 0 {
		c, d := &creditors[0], &debtors[0]
		amount := decimal.Min(c.amount, d.amount)

		from, to := d.id, c.id
		transfers = append(transfers, domain.SettlementTransfer{
			SessionID: s.ID,
			FromID:    &from,
			ToID:      &to,
			Amount:    amount,
			Kind:      domain.PlayerToPlayer,
			Note:      fmt.Sprintf("%s pays %s", d.name, c.name),
		})

		c.amount = c.amount.Sub(amount)
		d.amount = d.amount.Sub(amount)
		if c.amount.Sign() == 0 {
			creditors = creditors[1:]
		}
		if d.amount.Sign() == 0 {
			debtors = debtors[1:]
		}
		sortSides(creditors)
		sortSides(debtors)
	}
	return transfers
}

// sortSides orders by descending magnitude, then ascending id.
func sortSides(sides []side) {
	sort.SliceStable(sides, func(i, j int) bool {
		if c := sides[i].amount.Cmp(sides[j].amount); c != 0 {
			return c > 0
		}
		return sides[i].id.String() < sides[j].id.String()
	})
}
