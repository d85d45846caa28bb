// Package session implements the mutating operations of the accounting
// core: the chip ledger, the expense ledger, and the session bank. Every
// operation validates first and either fully applies or fully fails;
// totals are never stored, only folded from the logs.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfierros/potledger/internal/domain"
)

// New creates an empty session. chipValue is the cash value of one chip
// and must be positive.
func New(name string, chipValue decimal.Decimal) (*domain.Session, error) {
	if chipValue.Sign() <= 0 {
		return nil, fmt.Errorf("chip value %s: %w", chipValue, domain.ErrInvalidAmount)
	}
	return &domain.Session{
		ID:        uuid.New(),
		Name:      name,
		ChipValue: chipValue,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// AddParticipant seats a new player.
func AddParticipant(s *domain.Session, name string) *domain.Participant {
	p := &domain.Participant{
		ID:        uuid.New(),
		Name:      name,
		InGame:    true,
		CreatedAt: time.Now().UTC(),
	}
	s.Participants = append(s.Participants, p)
	return p
}

// RemoveParticipant deletes a player and, with them, their chip entries
// and expense shares. The caller is responsible for refusing the call
// while unsettled transfers still reference the player.
func RemoveParticipant(s *domain.Session, id uuid.UUID) error {
	idx := -1
	for i, p := range s.Participants {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("participant %s: %w", id, domain.ErrNotFound)
	}
	s.Participants = append(s.Participants[:idx], s.Participants[idx+1:]...)

	for _, e := range s.Expenses {
		kept := e.Distributions[:0]
		for _, d := range e.Distributions {
			if d.ParticipantID != id {
				kept = append(kept, d)
			}
		}
		e.Distributions = kept
	}
	return nil
}

// SetInGame flags whether the player is still seated. Leaving the game is
// what makes a player eligible for bank obligations and settlement.
func SetInGame(s *domain.Session, id uuid.UUID, inGame bool) error {
	p := s.Participant(id)
	if p == nil {
		return fmt.Errorf("participant %s: %w", id, domain.ErrNotFound)
	}
	p.InGame = inGame
	return nil
}
