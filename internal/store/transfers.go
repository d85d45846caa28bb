package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mfierros/potledger/internal/domain"
)

// ListTransfers returns the persisted settlement transfers for a session
// in creation order.
func (s *Store) ListTransfers(ctx context.Context, sessionID uuid.UUID) ([]domain.SettlementTransfer, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, from_id, to_id, amount, kind, note, completed, created_at
		 FROM settlement_transfers WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []domain.SettlementTransfer
	for rows.Next() {
		var t domain.SettlementTransfer
		if err := rows.Scan(&t.ID, &t.SessionID, &t.FromID, &t.ToID, &t.Amount, &t.Kind, &t.Note, &t.Completed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplaceTransfers swaps the session's journal for the given set in one
// transaction, so a recompute either lands completely or not at all.
func (s *Store) ReplaceTransfers(ctx context.Context, sessionID uuid.UUID, transfers []domain.SettlementTransfer) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM settlement_transfers WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear transfers: %w", err)
	}
	for _, t := range transfers {
		_, err = tx.Exec(ctx,
			`INSERT INTO settlement_transfers (id, session_id, from_id, to_id, amount, kind, note, completed, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.ID, sessionID, t.FromID, t.ToID, t.Amount, t.Kind, t.Note, t.Completed, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// GetTransfer fetches one journal row.
func (s *Store) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.SettlementTransfer, error) {
	var t domain.SettlementTransfer
	err := s.db.QueryRow(ctx,
		`SELECT id, session_id, from_id, to_id, amount, kind, note, completed, created_at
		 FROM settlement_transfers WHERE id = $1`, id).
		Scan(&t.ID, &t.SessionID, &t.FromID, &t.ToID, &t.Amount, &t.Kind, &t.Note, &t.Completed, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transfer %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return &t, nil
}

// SetTransferCompleted flips the completion flag; amounts never change.
func (s *Store) SetTransferCompleted(ctx context.Context, id uuid.UUID, completed bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE settlement_transfers SET completed = $1 WHERE id = $2`, completed, id)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// HasIncompleteTransfers reports whether any unsettled transfer still
// references the participant. Deleting such a participant is refused.
func (s *Store) HasIncompleteTransfers(ctx context.Context, participantID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM settlement_transfers
		 WHERE (from_id = $1 OR to_id = $1) AND NOT completed)`, participantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transfers: %w", err)
	}
	return exists, nil
}

// VacuumJournal deletes completed transfers created before the cutoff,
// for sessions whose journal is fully completed. Long-settled games keep
// their ledgers; the to-do list is done and can go.
func (s *Store) VacuumJournal(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.db.Exec(ctx,
		`DELETE FROM settlement_transfers t
		 WHERE t.completed AND t.created_at < $1
		 AND NOT EXISTS (SELECT 1 FROM settlement_transfers u
		                 WHERE u.session_id = t.session_id AND NOT u.completed)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("vacuum journal: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.log.WithField("purged", n).Info("journal vacuum complete")
		return n, nil
	}
	return 0, nil
}
