package store

import (
	"github.com/google/uuid"
)

// UnitIDGenerator generates ids that correlate every mutation of one unit of
// work. Implemented by UUIDv7Generator (production) and
// testutil.SequenceGenerator (tests).
type UnitIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 unit ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
