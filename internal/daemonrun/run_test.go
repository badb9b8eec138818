package daemonrun_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"linkhaul/internal/containers"
	"linkhaul/internal/daemonrun"
	"linkhaul/internal/logging"
	"linkhaul/internal/store"
	"linkhaul/internal/testsupport"
)

func TestBuildSharesStoreAcrossServices(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, err := daemonrun.Build(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer rt.Close()

	c, err := rt.Containers.CreateManual(context.Background(), containers.ManualRequest{
		Name: "Batch",
		URLs: []string{"https://rapidgator.net/file/a"},
	})
	if err != nil {
		t.Fatalf("CreateManual failed: %v", err)
	}
	members, err := rt.Containers.Members(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 1 || members[0].Status != store.DownloadFailed {
		t.Fatalf("expected one member failed against an unreachable engine, got %+v", members)
	}
	d, err := rt.Downloads.Get(context.Background(), members[0].ID)
	if err != nil || d == nil {
		t.Fatalf("downloads service cannot see container member: %v", err)
	}
	if rt.Store.Path() != cfg.DatabasePath() {
		t.Fatalf("unexpected database path %q", rt.Store.Path())
	}
}

func TestBuildRequiresConfig(t *testing.T) {
	if _, err := daemonrun.Build(nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	pidPath := filepath.Join(cfg.Paths.DataDir, "linkhauld.pid")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{LogLevel: "error"})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(pidPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("pid file never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
	if _, err := os.Stat(pidPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}
