// Package export serializes a session snapshot for transfer between
// devices. The envelope carries a format version and export timestamp;
// the body is the full object graph, so re-hydrating and recomputing
// settlement yields the same result the exporting side saw.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mfierros/potledger/internal/domain"
)

// FormatVersion is bumped on any incompatible change to the snapshot
// shape. Import refuses versions it does not know.
const FormatVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Envelope wraps an exported session.
type Envelope struct {
	FormatVersion int            `json:"format_version"`
	ExportedAt    time.Time      `json:"exported_at"`
	Session       domain.Session `json:"session"`
}

// Export renders the session as a versioned snapshot.
func Export(s *domain.Session, now time.Time) ([]byte, error) {
	env := Envelope{
		FormatVersion: FormatVersion,
		ExportedAt:    now.UTC(),
		Session:       *s,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Import parses a snapshot and returns the re-hydrated session.
func Import(data []byte) (*domain.Session, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if env.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("version %d: %w", env.FormatVersion, ErrUnsupportedVersion)
	}
	s := env.Session
	return &s, nil
}
