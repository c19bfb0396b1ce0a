package testsupport

import (
	"testing"

	"echopod/internal/config"
	"echopod/internal/store"
)

// MustOpenStore opens a library store for the test config and closes it on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()
	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
