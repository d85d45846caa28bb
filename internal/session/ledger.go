package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mfierros/potledger/internal/domain"
)

// Record appends a chip movement to a participant's ledger. Amounts must
// be non-negative; a zero cash-out is the legitimate "left with nothing"
// case, while a cash-out above the buy-in total is normal for a winner.
func Record(s *domain.Session, participantID uuid.UUID, kind domain.EntryKind, chips int64, at time.Time) (*domain.LedgerEntry, error) {
	p := s.Participant(participantID)
	if p == nil {
		return nil, fmt.Errorf("participant %s: %w", participantID, domain.ErrNotFound)
	}
	if chips < 0 {
		return nil, fmt.Errorf("chips %d: %w", chips, domain.ErrInvalidAmount)
	}
	switch kind {
	case domain.EntryBuyIn, domain.EntryAddOn:
		if chips == 0 {
			return nil, fmt.Errorf("zero %s: %w", kind, domain.ErrInvalidAmount)
		}
	case domain.EntryCashOut:
	default:
		return nil, fmt.Errorf("entry kind %q: %w", kind, domain.ErrInvalidAmount)
	}

	entry := domain.LedgerEntry{
		ID:            uuid.New(),
		ParticipantID: p.ID,
		Kind:          kind,
		Chips:         chips,
		CreatedAt:     at.UTC(),
	}
	p.Entries = append(p.Entries, entry)
	return &entry, nil
}

// RemoveEntry deletes a chip entry from its participant's log. Totals are
// folds over the log, so removal needs no compensation bookkeeping.
func RemoveEntry(s *domain.Session, participantID, entryID uuid.UUID) error {
	p := s.Participant(participantID)
	if p == nil {
		return fmt.Errorf("participant %s: %w", participantID, domain.ErrNotFound)
	}
	for i, e := range p.Entries {
		if e.ID == entryID {
			p.Entries = append(p.Entries[:i], p.Entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("entry %s: %w", entryID, domain.ErrNotFound)
}
