package testsupport

import (
	"context"
	"testing"

	"linkhaul/internal/config"
	"linkhaul/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewDownload inserts a download row directly, bypassing the engine.
func NewDownload(t testing.TB, st *store.Store, d *store.Download) *store.Download {
	t.Helper()

	if d.ETASeconds == 0 {
		d.ETASeconds = -1
	}
	if err := st.CreateDownload(context.Background(), d); err != nil {
		t.Fatalf("store.CreateDownload: %v", err)
	}
	return d
}

// NewContainer inserts a container row directly.
func NewContainer(t testing.TB, st *store.Store, c *store.Container) *store.Container {
	t.Helper()

	if err := st.CreateContainer(context.Background(), c); err != nil {
		t.Fatalf("store.CreateContainer: %v", err)
	}
	return c
}
