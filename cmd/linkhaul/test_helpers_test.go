package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"linkhaul/internal/config"
	"linkhaul/internal/testsupport"
)

// fakeAria2 answers the JSON-RPC subset the engine client uses. Transfers
// start active at 25% and follow pause, unpause and remove calls.
type fakeAria2 struct {
	mu      sync.Mutex
	next    int
	states  map[string]string
	failAdd bool
	calls   map[string]int
}

func newFakeAria2(t *testing.T) (*fakeAria2, *httptest.Server) {
	t.Helper()
	f := &fakeAria2{states: map[string]string{}, calls: map[string]int{}}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeAria2) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	result, rpcErr := f.handle(req.Method, req.Params)
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
		w.WriteHeader(http.StatusBadRequest)
	} else {
		resp["result"] = result
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeAria2) handle(method string, params []json.RawMessage) (any, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++

	gid := ""
	if len(params) > 0 {
		_ = json.Unmarshal(params[0], &gid)
	}
	switch method {
	case "aria2.getVersion":
		return map[string]any{"version": "1.37.0"}, nil
	case "aria2.addUri":
		if f.failAdd {
			return nil, map[string]any{"code": 1, "message": "add rejected"}
		}
		f.next++
		id := fmt.Sprintf("%016x", f.next)
		f.states[id] = "active"
		return id, nil
	case "aria2.tellStatus":
		state, ok := f.states[gid]
		if !ok {
			return nil, map[string]any{"code": 1, "message": "GID " + gid + " is not found"}
		}
		completed := "250"
		if state == "complete" {
			completed = "1000"
		}
		return map[string]any{
			"gid":             gid,
			"status":          state,
			"totalLength":     "1000",
			"completedLength": completed,
			"downloadSpeed":   "50",
			"files":           []map[string]any{{"path": "/dl/" + gid + ".bin", "length": "1000", "completedLength": completed}},
		}, nil
	case "aria2.pause":
		f.states[gid] = "paused"
		return gid, nil
	case "aria2.unpause":
		f.states[gid] = "active"
		return gid, nil
	case "aria2.remove", "aria2.forceRemove":
		f.states[gid] = "removed"
		return gid, nil
	case "aria2.getGlobalStat":
		return map[string]any{"downloadSpeed": "4096", "uploadSpeed": "0", "numActive": "1", "numWaiting": "0", "numStopped": "0"}, nil
	default:
		return "OK", nil
	}
}

func (f *fakeAria2) completeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for gid := range f.states {
		f.states[gid] = "complete"
	}
}

func (f *fakeAria2) setFailAdd(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAdd = fail
}

func (f *fakeAria2) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	aria       *fakeAria2
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	aria, server := newFakeAria2(t)
	t.Setenv("LINKHAUL_ENGINE_SECRET", "")
	t.Setenv("LINKHAUL_API_TOKEN", "")
	t.Setenv("LINKHAUL_NTFY_TOPIC", "")
	opts = append([]testsupport.ConfigOption{testsupport.WithEngineURL(server.URL + "/jsonrpc")}, opts...)
	cfg := testsupport.NewConfig(t, opts...)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, aria: aria}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if env != nil && env.configPath != "" {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, _, err := runCLI(t, env, args...)
	if err != nil {
		t.Fatalf("linkhaul %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func decodeOutput[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	return v
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
