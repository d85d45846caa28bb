package settle

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfierros/potledger/internal/domain"
	"github.com/mfierros/potledger/internal/session"
)

// seat adds an exited participant with one buy-in and one cash-out.
func seat(t *testing.T, s *domain.Session, name string, buyIn, cashOut int64) *domain.Participant {
	t.Helper()
	p := session.AddParticipant(s, name)
	now := time.Now()
	if _, err := session.Record(s, p.ID, domain.EntryBuyIn, buyIn, now); err != nil {
		t.Fatalf("buy-in for %s: %v", name, err)
	}
	if _, err := session.Record(s, p.ID, domain.EntryCashOut, cashOut, now.Add(time.Hour)); err != nil {
		t.Fatalf("cash-out for %s: %v", name, err)
	}
	p.InGame = false
	return p
}

func cashSession(t *testing.T) *domain.Session {
	t.Helper()
	s, err := session.New("cash game", decimal.NewFromInt(1))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func netFor(result *domain.SettlementResult, id uuid.UUID) decimal.Decimal {
	for _, b := range result.Balances {
		if b.ParticipantID == id {
			return b.Net
		}
	}
	return decimal.Zero
}

// Three players, no bank: one winner is paid by two losers in proportion
// to their deficits, largest debtor first.
func TestThreePlayersNoBank(t *testing.T) {
	s := cashSession(t)
	p1 := seat(t, s, "p1", 1000, 1500)
	p2 := seat(t, s, "p2", 1000, 700)
	p3 := seat(t, s, "p3", 1000, 800)

	result, err := Calculate(s)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if got := netFor(result, p1.ID); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("p1 net: got %s, want 500", got)
	}
	if len(result.BankTransfers) != 0 || len(result.ReturnTransfers) != 0 {
		t.Errorf("no bank means no bank transfers, got %d/%d",
			len(result.BankTransfers), len(result.ReturnTransfers))
	}
	if len(result.PlayerTransfers) != 2 {
		t.Fatalf("transfers: got %d, want 2", len(result.PlayerTransfers))
	}

	total := decimal.Zero
	for _, tr := range result.PlayerTransfers {
		if tr.ToID == nil || *tr.ToID != p1.ID {
			t.Errorf("transfer not into p1: %+v", tr)
		}
		total = total.Add(tr.Amount)
	}
	if !total.Equal(decimal.NewFromInt(500)) {
		t.Errorf("transfers into p1 sum to %s, want 500", total)
	}

	// Largest debtor pairs first: p2 owes 300, p3 owes 200.
	first := result.PlayerTransfers[0]
	if *first.FromID != p2.ID || !first.Amount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("first transfer: got %s from %s, want 300 from p2", first.Amount, *first.FromID)
	}
	second := result.PlayerTransfers[1]
	if *second.FromID != p3.ID || !second.Amount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("second transfer: got %s from %s, want 200 from p3", second.Amount, *second.FromID)
	}
}

// A winner with no bank interaction is paid by the bank, not by peers.
func TestBankMediatesWinner(t *testing.T) {
	s := cashSession(t)
	p1 := seat(t, s, "winner", 1000, 1500)
	p2 := seat(t, s, "loser", 1000, 500)
	session.EnsureBank(s)

	result, err := Calculate(s)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if len(result.BankTransfers) != 1 {
		t.Fatalf("bank transfers: got %d, want 1", len(result.BankTransfers))
	}
	bt := result.BankTransfers[0]
	if bt.Kind != domain.BankToPlayer || *bt.ToID != p1.ID || !bt.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("bank payout: %+v", bt)
	}

	if len(result.ReturnTransfers) != 1 {
		t.Fatalf("return transfers: got %d, want 1", len(result.ReturnTransfers))
	}
	rt := result.ReturnTransfers[0]
	if rt.Kind != domain.PlayerToBank || *rt.FromID != p2.ID || !rt.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("bank repayment: %+v", rt)
	}

	if len(result.PlayerTransfers) != 0 {
		t.Errorf("bank-mediated session should need no direct transfers, got %d", len(result.PlayerTransfers))
	}
}

// A loser who already deposited part of their debt only repays the rest.
func TestPartialBankInteraction(t *testing.T) {
	s := cashSession(t)
	seat(t, s, "winner", 1000, 1400)
	loser := seat(t, s, "loser", 1000, 600)

	lid := loser.ID
	if _, err := session.RecordBankEntry(s, domain.BankDeposit, decimal.NewFromInt(150), "partial", &lid, nil); err != nil {
		t.Fatal(err)
	}

	result, err := Calculate(s)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(result.ReturnTransfers) != 1 {
		t.Fatalf("return transfers: got %d, want 1", len(result.ReturnTransfers))
	}
	if got := result.ReturnTransfers[0].Amount; !got.Equal(decimal.NewFromInt(250)) {
		t.Errorf("remaining debt: got %s, want 250", got)
	}
}

// The bank's books must reconcile with the transfers it will make.
func TestBankTransfersMatchPool(t *testing.T) {
	s := cashSession(t)
	winner := seat(t, s, "winner", 1000, 1600)
	loserA := seat(t, s, "loserA", 1000, 700)
	loserB := seat(t, s, "loserB", 1000, 700)

	// Both losers settle their full debt into the bank up front.
	for _, p := range []*domain.Participant{loserA, loserB} {
		pid := p.ID
		if _, err := session.RecordBankEntry(s, domain.BankDeposit, decimal.NewFromInt(300), "", &pid, nil); err != nil {
			t.Fatal(err)
		}
	}

	result, err := Calculate(s)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	payouts := decimal.Zero
	for _, tr := range result.BankTransfers {
		payouts = payouts.Add(tr.Amount)
	}
	repayments := decimal.Zero
	for _, tr := range result.ReturnTransfers {
		repayments = repayments.Add(tr.Amount)
	}
	if got := payouts.Sub(repayments); !got.Equal(s.Bank.NetBalance()) {
		t.Errorf("payouts-repayments %s != pool balance %s", got, s.Bank.NetBalance())
	}
	if len(result.BankTransfers) != 1 || !result.BankTransfers[0].Amount.Equal(decimal.NewFromInt(600)) {
		t.Errorf("winner payout: %+v", result.BankTransfers)
	}
	if *result.BankTransfers[0].ToID != winner.ID {
		t.Error("payout not aimed at winner")
	}
}

// A seated player's bank deposit stays with the bank until they leave
// the game; it must not leak into the residuals or produce transfers.
func TestSeatedDepositorStaysWithBank(t *testing.T) {
	s := cashSession(t)
	winner := seat(t, s, "winner", 1000, 1300)
	loser := seat(t, s, "loser", 1000, 700)

	waiting := session.AddParticipant(s, "waiting")
	wid := waiting.ID
	if _, err := session.RecordBankEntry(s, domain.BankDeposit, decimal.NewFromInt(100), "chips on the way", &wid, nil); err != nil {
		t.Fatal(err)
	}

	result, err := Calculate(s)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if got := netFor(result, waiting.ID); got.Sign() != 0 {
		t.Errorf("seated net: got %s, want 0", got)
	}
	for _, group := range [][]domain.SettlementTransfer{
		result.BankTransfers, result.ReturnTransfers, result.PlayerTransfers,
	} {
		for _, tr := range group {
			if (tr.FromID != nil && *tr.FromID == waiting.ID) ||
				(tr.ToID != nil && *tr.ToID == waiting.ID) {
				t.Errorf("seated player pulled into settlement: %+v", tr)
			}
		}
	}

	// The exited players still settle through the bank as usual.
	if len(result.BankTransfers) != 1 || *result.BankTransfers[0].ToID != winner.ID {
		t.Errorf("winner payout: %+v", result.BankTransfers)
	}
	if len(result.ReturnTransfers) != 1 || *result.ReturnTransfers[0].FromID != loser.ID {
		t.Errorf("loser repayment: %+v", result.ReturnTransfers)
	}
}

// Expense folding: the payer's advance is credited in full and their own
// share still owed, with no double counting.
func TestExpenseNetting(t *testing.T) {
	s := cashSession(t)
	a := seat(t, s, "a", 1000, 1000)
	b := seat(t, s, "b", 1000, 1000)
	c := seat(t, s, "c", 1000, 1000)

	e, err := session.AddExpense(s, decimal.NewFromInt(60), "pizza", &a.ID, decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}
	err = session.Distribute(s, e.ID, []session.Share{
		{ParticipantID: a.ID, Amount: decimal.NewFromInt(20)},
		{ParticipantID: b.ID, Amount: decimal.NewFromInt(20)},
		{ParticipantID: c.ID, Amount: decimal.NewFromInt(20)},
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := Calculate(s)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if got := netFor(result, a.ID); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("payer net: got %s, want 40", got)
	}
	if got := netFor(result, b.ID); !got.Equal(decimal.NewFromInt(-20)) {
		t.Errorf("sharer net: got %s, want -20", got)
	}
	if len(result.PlayerTransfers) != 2 {
		t.Errorf("transfers: got %d, want 2", len(result.PlayerTransfers))
	}
}

func TestUndistributedExpenseRefused(t *testing.T) {
	s := cashSession(t)
	a := seat(t, s, "a", 1000, 1000)
	seat(t, s, "b", 1000, 1000)

	e, err := session.AddExpense(s, decimal.NewFromInt(60), "dealer", &a.ID, decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}
	// No shares at all: pending, settlement must flag it, not skip it.
	if _, err := Calculate(s); !errors.Is(err, domain.ErrUndistributedExpense) {
		t.Fatalf("undistributed: got %v, want ErrUndistributedExpense", err)
	}

	// Partially distributed is just as broken.
	err = session.Distribute(s, e.ID, []session.Share{{ParticipantID: a.ID, Amount: decimal.NewFromInt(30)}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Calculate(s); !errors.Is(err, domain.ErrUndistributedExpense) {
		t.Fatalf("partial distribution: got %v, want ErrUndistributedExpense", err)
	}
}

func TestUnbalancedLedgerRefused(t *testing.T) {
	s := cashSession(t)
	p := seat(t, s, "p", 1000, 1500)
	seat(t, s, "q", 1000, 500)

	// A cash-out recorded twice breaks chip conservation.
	if _, err := session.Record(s, p.ID, domain.EntryCashOut, 1500, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := Calculate(s); !errors.Is(err, domain.ErrUnbalancedLedger) {
		t.Fatalf("doubled cash-out: got %v, want ErrUnbalancedLedger", err)
	}
}

func TestLiveStackRefused(t *testing.T) {
	s := cashSession(t)
	seat(t, s, "done", 1000, 1000)
	still := session.AddParticipant(s, "still playing")
	if _, err := session.Record(s, still.ID, domain.EntryBuyIn, 1000, time.Now()); err != nil {
		t.Fatal(err)
	}

	if _, err := Calculate(s); !errors.Is(err, domain.ErrUnbalancedLedger) {
		t.Fatalf("live stack: got %v, want ErrUnbalancedLedger", err)
	}
}

// Calling Calculate twice on an unchanged snapshot yields identical
// results, ordering included.
func TestCalculateIdempotent(t *testing.T) {
	s := cashSession(t)
	seat(t, s, "p1", 1000, 1700)
	seat(t, s, "p2", 1000, 900)
	seat(t, s, "p3", 1000, 400)
	seat(t, s, "p4", 2000, 2000)

	first, err := Calculate(s)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	second, err := Calculate(s)
	if err != nil {
		t.Fatalf("Calculate again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestZeroSessionSettlesEmpty(t *testing.T) {
	s := cashSession(t)
	seat(t, s, "p1", 500, 500)
	seat(t, s, "p2", 500, 500)

	result, err := Calculate(s)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(result.BankTransfers)+len(result.ReturnTransfers)+len(result.PlayerTransfers) != 0 {
		t.Errorf("flat session should produce no transfers: %+v", result)
	}
}
