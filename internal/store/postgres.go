// Package store persists sessions and the settlement transfer journal in
// Postgres. The object graph in memory is the source of truth for a
// mutation; SaveSession writes the whole graph in one transaction so a
// failed save leaves no partial state behind.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/mfierros/potledger/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

func NewStore(ctx context.Context, connString string, log *logrus.Logger) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{db: pool, log: log}, nil
}

func (s *Store) Close() {
	s.db.Close()
}

// EnsureSchema applies the embedded schema. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveSession upserts the full session graph in one transaction.
// Participants and expenses removed from the graph are deleted;
// settlement transfers are not touched here, their participant
// references null out via the schema when a player row goes away.
func (s *Store) SaveSession(ctx context.Context, sess *domain.Session) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (id, name, chip_value, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = $2, chip_value = $3`,
		sess.ID, sess.Name, sess.ChipValue, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if err := saveParticipants(ctx, tx, sess); err != nil {
		return err
	}
	if err := saveExpenses(ctx, tx, sess); err != nil {
		return err
	}
	if err := saveBank(ctx, tx, sess); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

func saveParticipants(ctx context.Context, tx pgx.Tx, sess *domain.Session) error {
	ids := make([]uuid.UUID, 0, len(sess.Participants))
	for _, p := range sess.Participants {
		ids = append(ids, p.ID)
	}
	_, err := tx.Exec(ctx,
		`DELETE FROM participants WHERE session_id = $1 AND id != ALL($2)`, sess.ID, ids)
	if err != nil {
		return fmt.Errorf("prune participants: %w", err)
	}

	for _, p := range sess.Participants {
		_, err = tx.Exec(ctx,
			`INSERT INTO participants (id, session_id, name, in_game, created_at) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET name = $3, in_game = $4`,
			p.ID, sess.ID, p.Name, p.InGame, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert participant: %w", err)
		}
	}

	// The chip log is rewritten wholesale: entries carry no completion
	// state and nothing references them.
	_, err = tx.Exec(ctx,
		`DELETE FROM ledger_entries USING participants p
		 WHERE p.id = ledger_entries.participant_id AND p.session_id = $1`, sess.ID)
	if err != nil {
		return fmt.Errorf("clear ledger entries: %w", err)
	}
	for _, p := range sess.Participants {
		for _, e := range p.Entries {
			_, err = tx.Exec(ctx,
				`INSERT INTO ledger_entries (id, participant_id, kind, chips, created_at) VALUES ($1, $2, $3, $4, $5)`,
				e.ID, p.ID, e.Kind, e.Chips, e.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert ledger entry: %w", err)
			}
		}
	}
	return nil
}

func saveExpenses(ctx context.Context, tx pgx.Tx, sess *domain.Session) error {
	ids := make([]uuid.UUID, 0, len(sess.Expenses))
	for _, e := range sess.Expenses {
		ids = append(ids, e.ID)
	}
	_, err := tx.Exec(ctx,
		`DELETE FROM expenses WHERE session_id = $1 AND id != ALL($2)`, sess.ID, ids)
	if err != nil {
		return fmt.Errorf("prune expenses: %w", err)
	}

	for _, e := range sess.Expenses {
		_, err = tx.Exec(ctx,
			`INSERT INTO expenses (id, session_id, amount, note, payer_id, paid_from_bank, paid_from_rake, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET amount = $3, note = $4, payer_id = $5, paid_from_bank = $6, paid_from_rake = $7`,
			e.ID, sess.ID, e.Amount, e.Note, e.PayerID, e.PaidFromBank, e.PaidFromRake, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert expense: %w", err)
		}
		_, err = tx.Exec(ctx, `DELETE FROM expense_distributions WHERE expense_id = $1`, e.ID)
		if err != nil {
			return fmt.Errorf("clear distributions: %w", err)
		}
		for _, d := range e.Distributions {
			_, err = tx.Exec(ctx,
				`INSERT INTO expense_distributions (expense_id, participant_id, amount) VALUES ($1, $2, $3)`,
				e.ID, d.ParticipantID, d.Amount)
			if err != nil {
				return fmt.Errorf("insert distribution: %w", err)
			}
		}
	}
	return nil
}

func saveBank(ctx context.Context, tx pgx.Tx, sess *domain.Session) error {
	if sess.Bank == nil {
		if _, err := tx.Exec(ctx, `DELETE FROM banks WHERE session_id = $1`, sess.ID); err != nil {
			return fmt.Errorf("delete bank: %w", err)
		}
		return nil
	}

	b := sess.Bank
	_, err := tx.Exec(ctx,
		`INSERT INTO banks (session_id, manager_id, closed, closed_at, expected_total, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id) DO UPDATE SET manager_id = $2, closed = $3, closed_at = $4, expected_total = $5`,
		sess.ID, b.ManagerID, b.Closed, b.ClosedAt, b.ExpectedTotal, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert bank: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bank_entries WHERE session_id = $1`, sess.ID); err != nil {
		return fmt.Errorf("clear bank entries: %w", err)
	}
	for _, e := range b.Entries {
		_, err = tx.Exec(ctx,
			`INSERT INTO bank_entries (id, session_id, kind, amount, note, participant_id, expense_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, sess.ID, e.Kind, e.Amount, e.Note, e.ParticipantID, e.ExpenseID, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert bank entry: %w", err)
		}
	}
	return nil
}

// LoadSession reads the full session graph.
func (s *Store) LoadSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	sess := &domain.Session{ID: id}
	err := s.db.QueryRow(ctx,
		`SELECT name, chip_value, created_at FROM sessions WHERE id = $1`, id).
		Scan(&sess.Name, &sess.ChipValue, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if err := s.loadParticipants(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.loadExpenses(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.loadBank(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) loadParticipants(ctx context.Context, sess *domain.Session) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, in_game, created_at FROM participants WHERE session_id = $1 ORDER BY created_at, id`,
		sess.ID)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	byID := map[uuid.UUID]*domain.Participant{}
	for rows.Next() {
		p := &domain.Participant{}
		if err := rows.Scan(&p.ID, &p.Name, &p.InGame, &p.CreatedAt); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		sess.Participants = append(sess.Participants, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return err
	}

	entryRows, err := s.db.Query(ctx,
		`SELECT e.id, e.participant_id, e.kind, e.chips, e.created_at
		 FROM ledger_entries e JOIN participants p ON p.id = e.participant_id
		 WHERE p.session_id = $1 ORDER BY e.created_at, e.id`, sess.ID)
	if err != nil {
		return fmt.Errorf("load ledger entries: %w", err)
	}
	defer entryRows.Close()

	for entryRows.Next() {
		var e domain.LedgerEntry
		if err := entryRows.Scan(&e.ID, &e.ParticipantID, &e.Kind, &e.Chips, &e.CreatedAt); err != nil {
			return fmt.Errorf("scan ledger entry: %w", err)
		}
		if p, ok := byID[e.ParticipantID]; ok {
			p.Entries = append(p.Entries, e)
		}
	}
	return entryRows.Err()
}

func (s *Store) loadExpenses(ctx context.Context, sess *domain.Session) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, amount, note, payer_id, paid_from_bank, paid_from_rake, created_at
		 FROM expenses WHERE session_id = $1 ORDER BY created_at, id`, sess.ID)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	defer rows.Close()

	byID := map[uuid.UUID]*domain.Expense{}
	for rows.Next() {
		e := &domain.Expense{}
		if err := rows.Scan(&e.ID, &e.Amount, &e.Note, &e.PayerID, &e.PaidFromBank, &e.PaidFromRake, &e.CreatedAt); err != nil {
			return fmt.Errorf("scan expense: %w", err)
		}
		sess.Expenses = append(sess.Expenses, e)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return err
	}

	distRows, err := s.db.Query(ctx,
		`SELECT d.expense_id, d.participant_id, d.amount
		 FROM expense_distributions d JOIN expenses e ON e.id = d.expense_id
		 WHERE e.session_id = $1 ORDER BY d.participant_id`, sess.ID)
	if err != nil {
		return fmt.Errorf("load distributions: %w", err)
	}
	defer distRows.Close()

	for distRows.Next() {
		var expenseID uuid.UUID
		var d domain.ExpenseDistribution
		if err := distRows.Scan(&expenseID, &d.ParticipantID, &d.Amount); err != nil {
			return fmt.Errorf("scan distribution: %w", err)
		}
		if e, ok := byID[expenseID]; ok {
			e.Distributions = append(e.Distributions, d)
		}
	}
	return distRows.Err()
}

func (s *Store) loadBank(ctx context.Context, sess *domain.Session) error {
	b := &domain.SessionBank{}
	err := s.db.QueryRow(ctx,
		`SELECT manager_id, closed, closed_at, expected_total, created_at FROM banks WHERE session_id = $1`,
		sess.ID).Scan(&b.ManagerID, &b.Closed, &b.ClosedAt, &b.ExpectedTotal, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load bank: %w", err)
	}
	sess.Bank = b

	rows, err := s.db.Query(ctx,
		`SELECT id, kind, amount, note, participant_id, expense_id, created_at
		 FROM bank_entries WHERE session_id = $1 ORDER BY created_at, id`, sess.ID)
	if err != nil {
		return fmt.Errorf("load bank entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.BankLedgerEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Amount, &e.Note, &e.ParticipantID, &e.ExpenseID, &e.CreatedAt); err != nil {
			return fmt.Errorf("scan bank entry: %w", err)
		}
		b.Entries = append(b.Entries, e)
	}
	return rows.Err()
}

// DeleteSession removes a session and, through the schema, everything it
// owns.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
