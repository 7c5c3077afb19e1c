package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tejasri1920/Steelworks/internal/store"
)

// OpenStore opens a store in a temp dir with a StepClock and a
// SequenceGenerator, closed when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(
		filepath.Join(t.TempDir(), "steelworks.db"),
		store.WithClock(NewStepClock(Epoch, 0).Now),
		store.WithUnitIDGenerator(NewSequenceGenerator("unit")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
