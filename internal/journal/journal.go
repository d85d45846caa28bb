// Package journal persists the settlement calculator's output as
// individually completable transfer records and reconciles recomputation
// against what is already on disk, so marking a transfer as paid survives
// unrelated ledger edits.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mfierros/potledger/internal/domain"
)

// Store is the persistence the journal needs. The Postgres implementation
// lives in internal/store; tests use an in-memory one.
type Store interface {
	ListTransfers(ctx context.Context, sessionID uuid.UUID) ([]domain.SettlementTransfer, error)
	ReplaceTransfers(ctx context.Context, sessionID uuid.UUID, transfers []domain.SettlementTransfer) error
	GetTransfer(ctx context.Context, id uuid.UUID) (*domain.SettlementTransfer, error)
	SetTransferCompleted(ctx context.Context, id uuid.UUID, completed bool) error
}

type Journal struct {
	store Store
	log   *logrus.Logger
}

func New(store Store, log *logrus.Logger) *Journal {
	return &Journal{store: store, log: log}
}

// Save persists a freshly computed result, preserving completion state:
// a persisted transfer that still matches a proposal by (kind, from, to,
// amount) keeps its id and completed flag; everything else is replaced.
func (j *Journal) Save(ctx context.Context, sessionID uuid.UUID, result *domain.SettlementResult) ([]domain.SettlementTransfer, error) {
	existing, err := j.store.ListTransfers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load persisted transfers: %w", err)
	}

	proposals := flatten(sessionID, result)
	used := make([]bool, len(existing))
	now := time.Now().UTC()

	for i := range proposals {
		if match := findMatching(existing, used, &proposals[i]); match != nil {
			proposals[i].ID = match.ID
			proposals[i].Completed = match.Completed
			proposals[i].CreatedAt = match.CreatedAt
		} else {
			proposals[i].ID = uuid.New()
			proposals[i].CreatedAt = now
		}
	}

	if err := j.store.ReplaceTransfers(ctx, sessionID, proposals); err != nil {
		return nil, fmt.Errorf("replace transfers: %w", err)
	}
	j.log.WithFields(logrus.Fields{
		"session":   sessionID,
		"transfers": len(proposals),
	}).Info("settlement journal saved")
	return proposals, nil
}

// Recreate drops every persisted transfer for the session and re-saves
// from scratch, discarding completion state. Only for explicit operator
// "start over" actions; Save is the path that preserves progress.
func (j *Journal) Recreate(ctx context.Context, sessionID uuid.UUID, result *domain.SettlementResult) ([]domain.SettlementTransfer, error) {
	proposals := flatten(sessionID, result)
	now := time.Now().UTC()
	for i := range proposals {
		proposals[i].ID = uuid.New()
		proposals[i].CreatedAt = now
	}
	if err := j.store.ReplaceTransfers(ctx, sessionID, proposals); err != nil {
		return nil, fmt.Errorf("recreate transfers: %w", err)
	}
	j.log.WithField("session", sessionID).Info("settlement journal recreated")
	return proposals, nil
}

// ToggleCompletion flips a transfer's completed flag. Amounts and
// endpoints never change here.
func (j *Journal) ToggleCompletion(ctx context.Context, transferID uuid.UUID) (*domain.SettlementTransfer, error) {
	t, err := j.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	t.Completed = !t.Completed
	if err := j.store.SetTransferCompleted(ctx, transferID, t.Completed); err != nil {
		return nil, fmt.Errorf("toggle transfer %s: %w", transferID, err)
	}
	return t, nil
}

// LoadPersisted returns the journal rows for a session.
func (j *Journal) LoadPersisted(ctx context.Context, sessionID uuid.UUID) ([]domain.SettlementTransfer, error) {
	return j.store.ListTransfers(ctx, sessionID)
}

// FindMatching locates the persisted transfer matching a proposal by
// (kind, from, to, amount), or nil.
func FindMatching(persisted []domain.SettlementTransfer, proposal *domain.SettlementTransfer) *domain.SettlementTransfer {
	used := make([]bool, len(persisted))
	return findMatching(persisted, used, proposal)
}

// findMatching consumes matches so two identical proposals each claim a
// distinct persisted row.
func findMatching(persisted []domain.SettlementTransfer, used []bool, proposal *domain.SettlementTransfer) *domain.SettlementTransfer {
	for i := range persisted {
		if used[i] {
			continue
		}
		p := &persisted[i]
		if p.Kind == proposal.Kind &&
			sameRef(p.FromID, proposal.FromID) &&
			sameRef(p.ToID, proposal.ToID) &&
			p.Amount.Equal(proposal.Amount) {
			used[i] = true
			return p
		}
	}
	return nil
}

func sameRef(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// flatten orders a result's transfers deterministically: bank payouts,
// then repayments, then direct transfers.
func flatten(sessionID uuid.UUID, result *domain.SettlementResult) []domain.SettlementTransfer {
	out := make([]domain.SettlementTransfer, 0,
		len(result.BankTransfers)+len(result.ReturnTransfers)+len(result.PlayerTransfers))
	for _, group := range [][]domain.SettlementTransfer{
		result.BankTransfers, result.ReturnTransfers, result.PlayerTransfers,
	} {
		for _, t := range group {
			t.SessionID = sessionID
			out = append(out, t)
		}
	}
	return out
}
