package testsupport

import (
	"path/filepath"
	"testing"

	"linkhaul/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Paths.IncompleteDir = filepath.Join(base, "incomplete")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Engine.URL = "http://127.0.0.1:1/jsonrpc"
	cfgVal.Engine.Secret = ""
	cfgVal.Extract.RequestsPerSecond = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken sets the bearer token required by the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithEngineURL points the engine client at a test endpoint.
func WithEngineURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.URL = url
	}
}

// WithFilecryptServer treats baseURL's host as a filecrypt host so httptest
// fixtures exercise the filecrypt strategy.
func WithFilecryptServer(baseURL, host string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extract.FilecryptBaseURL = baseURL
		b.cfg.Extract.FilecryptHosts = []string{host}
	}
}

// WithHosters replaces the hoster allow-list.
func WithHosters(hosters ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extract.Hosters = hosters
	}
}

// WithResolveRedirects toggles /Link/ resolution before submission.
func WithResolveRedirects(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extract.ResolveRedirects = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
