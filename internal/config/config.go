package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	DownloadDir   string `toml:"download_dir"`
	IncompleteDir string `toml:"incomplete_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
}

// Engine contains connection and transfer settings for the aria2 RPC endpoint.
type Engine struct {
	URL                     string `toml:"url"`
	Secret                  string `toml:"secret"`
	TimeoutSeconds          int    `toml:"timeout_seconds"`
	Reconnect               string `toml:"reconnect"`
	MaxConnectionsPerServer int    `toml:"max_connections_per_server"`
	Split                   int    `toml:"split"`
	MinSplitSize            string `toml:"min_split_size"`
	// MaxDownloadKiB caps per-download speed. Zero means unlimited.
	MaxDownloadKiB int `toml:"max_download_kib"`
}

// CaptchaRule describes one markup pattern that signals a captcha gate.
type CaptchaRule struct {
	Kind        string `toml:"kind"`
	Element     string `toml:"element"`
	Class       string `toml:"class"`
	SrcContains string `toml:"src_contains"`
}

// Extract contains settings for container page fetching and parsing.
type Extract struct {
	UserAgent              string        `toml:"user_agent"`
	PageTimeoutSeconds     int           `toml:"page_timeout_seconds"`
	RedirectTimeoutSeconds int           `toml:"redirect_timeout_seconds"`
	RequestsPerSecond      int           `toml:"requests_per_second"`
	Hosters                []string      `toml:"hosters"`
	FilecryptHosts         []string      `toml:"filecrypt_hosts"`
	FilecryptBaseURL       string        `toml:"filecrypt_base_url"`
	PasswordInputName      string        `toml:"password_input_name"`
	Captcha                []CaptchaRule `toml:"captcha"`
	ResolveRedirects       bool          `toml:"resolve_redirects"`
}

// Reconcile controls the optional background status sweep run by the daemon.
type Reconcile struct {
	IntervalSeconds int `toml:"interval_seconds"` // 0 disables the sweep
	Concurrency     int `toml:"concurrency"`
}

// Notifications configures ntfy delivery of container outcomes.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"` // empty disables notifications
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for linkhaul.
//
// Configuration sections by subsystem:
//   - Paths: data, log and download directories plus the API bind address
//   - Engine: aria2 JSON-RPC endpoint and per-download transfer options
//   - Extract: container page fetching, hoster allow-list and gate patterns
//   - Reconcile: daemon status sweep interval and fan-out
//   - Notifications: optional ntfy topic for container outcomes
//   - Logging: log format, level and file rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Engine        Engine        `toml:"engine"`
	Extract       Extract       `toml:"extract"`
	Reconcile     Reconcile     `toml:"reconcile"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env"), ".env")

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads secrets from .env files without overriding variables that
// are already present in the environment.
func loadDotEnv(paths ...string) {
	for _, path := range paths {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(path)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("linkhaul.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon and CLI operation.
// DownloadDir is created on a best-effort basis so the CLI still works when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.IncompleteDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "linkhaul.db")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "linkhauld.lock")
}

// LogPath returns the rotating log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "linkhaul.log")
}

// EngineTimeout returns the per-RPC deadline.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

// PageTimeout returns the container page fetch deadline.
func (c *Config) PageTimeout() time.Duration {
	return time.Duration(c.Extract.PageTimeoutSeconds) * time.Second
}

// RedirectTimeout returns the redirect resolution deadline.
func (c *Config) RedirectTimeout() time.Duration {
	return time.Duration(c.Extract.RedirectTimeoutSeconds) * time.Second
}

// NotificationTimeout returns the ntfy request deadline.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// ReconcileInterval returns the sweep interval, or zero when disabled.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Reconcile.IntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}
