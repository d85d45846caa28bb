package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mfierros/potledger/internal/domain"
)

func TestAddExpenseValidation(t *testing.T) {
	s := newTestSession(t)
	p := AddParticipant(s, "alice")

	if _, err := AddExpense(s, decimal.NewFromInt(-10), "bad", &p.ID, decimal.Zero, decimal.Zero); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("negative amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := AddExpense(s, decimal.NewFromInt(10), "over", &p.ID, decimal.NewFromInt(8), decimal.NewFromInt(5)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("pool over amount: got %v, want ErrInvalidAmount", err)
	}
	// A remainder nobody fronted has no funding source.
	if _, err := AddExpense(s, decimal.NewFromInt(10), "unfunded", nil, decimal.NewFromInt(4), decimal.Zero); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("unfunded remainder: got %v, want ErrInvalidAmount", err)
	}
	// Fully pool-covered needs no payer.
	if _, err := AddExpense(s, decimal.NewFromInt(10), "tip", nil, decimal.NewFromInt(10), decimal.Zero); err != nil {
		t.Errorf("pool-covered expense: %v", err)
	}

	ghost := AddParticipant(newTestSession(t), "ghost")
	if _, err := AddExpense(s, decimal.NewFromInt(10), "stranger", &ghost.ID, decimal.Zero, decimal.Zero); !errors.Is(err, domain.ErrParticipantNotInSession) {
		t.Errorf("foreign payer: got %v, want ErrParticipantNotInSession", err)
	}
}

func TestDistributeAtomicReplace(t *testing.T) {
	s := newTestSession(t)
	a := AddParticipant(s, "alice")
	b := AddParticipant(s, "bob")
	e, err := AddExpense(s, decimal.NewFromInt(100), "dealer", &a.ID, decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	err = Distribute(s, e.ID, []Share{
		{ParticipantID: a.ID, Amount: decimal.NewFromInt(50)},
		{ParticipantID: b.ID, Amount: decimal.NewFromInt(50)},
	})
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if !e.FullyDistributed() {
		t.Error("expense should be fully distributed")
	}

	// A failing replacement must leave the old shares untouched.
	err = Distribute(s, e.ID, []Share{
		{ParticipantID: a.ID, Amount: decimal.NewFromInt(80)},
		{ParticipantID: b.ID, Amount: decimal.NewFromInt(80)},
	})
	if !errors.Is(err, domain.ErrOverDistributed) {
		t.Fatalf("over-distribution: got %v, want ErrOverDistributed", err)
	}
	if got := e.DistributedTotal(); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("distribution mutated by failed replace: total %s", got)
	}

	// Valid partial replacement swaps the whole set.
	err = Distribute(s, e.ID, []Share{{ParticipantID: b.ID, Amount: decimal.NewFromInt(40)}})
	if err != nil {
		t.Fatalf("partial Distribute: %v", err)
	}
	if len(e.Distributions) != 1 || e.FullyDistributed() {
		t.Errorf("replace not atomic: %d shares, fully=%v", len(e.Distributions), e.FullyDistributed())
	}
}

// A client that round-trips the snake_case representation the API emits
// for a recorded distribution must be able to submit it back as shares.
func TestShareDecodesWireFormat(t *testing.T) {
	s := newTestSession(t)
	a := AddParticipant(s, "alice")
	e, err := AddExpense(s, decimal.NewFromInt(20), "snacks", &a.ID, decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	payload := fmt.Sprintf(`[{"participant_id":%q,"amount":"20"}]`, a.ID)
	var shares []Share
	if err := json.Unmarshal([]byte(payload), &shares); err != nil {
		t.Fatalf("unmarshal shares: %v", err)
	}
	if len(shares) != 1 || shares[0].ParticipantID != a.ID {
		t.Fatalf("participant_id not decoded: got %+v", shares)
	}
	if !shares[0].Amount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("amount not decoded: got %s", shares[0].Amount)
	}

	if err := Distribute(s, e.ID, shares); err != nil {
		t.Fatalf("Distribute with decoded shares: %v", err)
	}
	if !e.FullyDistributed() {
		t.Error("expense should be fully distributed")
	}
}

func TestDistributeRejectsStrangersAndBadShares(t *testing.T) {
	s := newTestSession(t)
	a := AddParticipant(s, "alice")
	e, _ := AddExpense(s, decimal.NewFromInt(100), "food", &a.ID, decimal.Zero, decimal.Zero)

	ghost := AddParticipant(newTestSession(t), "ghost")
	err := Distribute(s, e.ID, []Share{{ParticipantID: ghost.ID, Amount: decimal.NewFromInt(10)}})
	if !errors.Is(err, domain.ErrParticipantNotInSession) {
		t.Errorf("stranger share: got %v, want ErrParticipantNotInSession", err)
	}

	err = Distribute(s, e.ID, []Share{{ParticipantID: a.ID, Amount: decimal.Zero}})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero share: got %v, want ErrInvalidAmount", err)
	}
}

// The pool-covered portion is owed by nobody, so shares only need to
// cover the remainder.
func TestDistributableExcludesPoolPortions(t *testing.T) {
	s := newTestSession(t)
	a := AddParticipant(s, "alice")
	b := AddParticipant(s, "bob")

	e, err := AddExpense(s, decimal.NewFromInt(100), "venue", &a.ID, decimal.NewFromInt(30), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if got := e.Distributable(); !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("Distributable: got %s, want 60", got)
	}

	err = Distribute(s, e.ID, []Share{
		{ParticipantID: a.ID, Amount: decimal.NewFromInt(30)},
		{ParticipantID: b.ID, Amount: decimal.NewFromInt(30)},
	})
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if !e.FullyDistributed() {
		t.Error("60 in shares should fully cover a 60 distributable")
	}
}
