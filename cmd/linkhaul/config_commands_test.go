package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "linkhaul", "config.toml")

	out, _, err := runCLI(t, nil, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, nil, "config", "init", "--path", target); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing file to be protected, got %v", err)
	}
	if _, _, err := runCLI(t, nil, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Engine.Secret = "s3cret-value"
	env.cfg.Paths.APIToken = "tok-value"
	writeTestConfig(t, env.configPath, env.cfg)

	out := mustRunCLI(t, env, "config", "show")
	if strings.Contains(out, "s3cret-value") || strings.Contains(out, "tok-value") {
		t.Fatalf("secrets leaked in output:\n%s", out)
	}
	requireContains(t, out, redacted)
	requireContains(t, out, env.cfg.Paths.DataDir)
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out := mustRunCLI(t, env, "test-notify")
	requireContains(t, out, "Notifications disabled")
}

func TestTestNotifyPostsToTopic(t *testing.T) {
	var hits atomic.Int32
	topic := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Title") == "linkhaul - Test" {
			hits.Add(1)
		}
	}))
	t.Cleanup(topic.Close)

	env := setupCLITestEnv(t)
	env.cfg.Notifications.NtfyTopic = topic.URL + "/linkhaul"
	writeTestConfig(t, env.configPath, env.cfg)

	out := mustRunCLI(t, env, "test-notify")
	requireContains(t, out, "Test notification sent")
	if hits.Load() != 1 {
		t.Fatalf("expected one ntfy request, got %d", hits.Load())
	}
}
