package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeExtract()
	c.normalizeReconcile()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IncompleteDir) == "" {
		c.Paths.IncompleteDir = c.Paths.DownloadDir
	}
	if c.Paths.IncompleteDir, err = expandPath(c.Paths.IncompleteDir); err != nil {
		return fmt.Errorf("paths.incomplete_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("LINKHAUL_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeEngine() {
	c.Engine.URL = strings.TrimSpace(c.Engine.URL)
	if c.Engine.URL == "" {
		c.Engine.URL = defaultEngineURL
	}
	c.Engine.Secret = strings.TrimSpace(c.Engine.Secret)
	if c.Engine.Secret == "" {
		if value, ok := os.LookupEnv("LINKHAUL_ENGINE_SECRET"); ok {
			c.Engine.Secret = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("ARIA2_RPC_SECRET"); ok {
			c.Engine.Secret = strings.TrimSpace(value)
		}
	}
	if c.Engine.TimeoutSeconds <= 0 {
		c.Engine.TimeoutSeconds = defaultEngineTimeoutSeconds
	}
	c.Engine.Reconnect = strings.ToLower(strings.TrimSpace(c.Engine.Reconnect))
	if c.Engine.Reconnect == "" {
		c.Engine.Reconnect = defaultEngineReconnect
	}
	if c.Engine.MaxConnectionsPerServer <= 0 {
		c.Engine.MaxConnectionsPerServer = defaultMaxConnectionsPerServer
	}
	if c.Engine.Split <= 0 {
		c.Engine.Split = defaultSplit
	}
	c.Engine.MinSplitSize = strings.TrimSpace(c.Engine.MinSplitSize)
	if c.Engine.MinSplitSize == "" {
		c.Engine.MinSplitSize = defaultMinSplitSize
	}
	if c.Engine.MaxDownloadKiB < 0 {
		c.Engine.MaxDownloadKiB = 0
	}
}

func (c *Config) normalizeExtract() {
	c.Extract.UserAgent = strings.TrimSpace(c.Extract.UserAgent)
	if c.Extract.UserAgent == "" {
		c.Extract.UserAgent = defaultUserAgent
	}
	if c.Extract.PageTimeoutSeconds <= 0 {
		c.Extract.PageTimeoutSeconds = defaultPageTimeoutSeconds
	}
	if c.Extract.RedirectTimeoutSeconds <= 0 {
		c.Extract.RedirectTimeoutSeconds = defaultRedirectTimeoutSeconds
	}
	if c.Extract.RequestsPerSecond < 0 {
		c.Extract.RequestsPerSecond = 0
	}
	c.Extract.Hosters = normalizeList(c.Extract.Hosters)
	if len(c.Extract.Hosters) == 0 {
		c.Extract.Hosters = defaultHosters()
	}
	c.Extract.FilecryptHosts = normalizeList(c.Extract.FilecryptHosts)
	if len(c.Extract.FilecryptHosts) == 0 {
		c.Extract.FilecryptHosts = defaultFilecryptHosts()
	}
	c.Extract.FilecryptBaseURL = strings.TrimRight(strings.TrimSpace(c.Extract.FilecryptBaseURL), "/")
	if c.Extract.FilecryptBaseURL == "" {
		c.Extract.FilecryptBaseURL = defaultFilecryptBaseURL
	}
	c.Extract.PasswordInputName = strings.TrimSpace(c.Extract.PasswordInputName)
	if c.Extract.PasswordInputName == "" {
		c.Extract.PasswordInputName = defaultPasswordInputName
	}
	rules := make([]CaptchaRule, 0, len(c.Extract.Captcha))
	for _, rule := range c.Extract.Captcha {
		rule.Kind = strings.TrimSpace(rule.Kind)
		rule.Element = strings.ToLower(strings.TrimSpace(rule.Element))
		rule.Class = strings.TrimSpace(rule.Class)
		rule.SrcContains = strings.ToLower(strings.TrimSpace(rule.SrcContains))
		if rule.Kind == "" || (rule.Class == "" && rule.SrcContains == "") {
			continue
		}
		rules = append(rules, rule)
	}
	if len(rules) == 0 {
		rules = defaultCaptchaRules()
	}
	c.Extract.Captcha = rules
}

func (c *Config) normalizeReconcile() {
	if c.Reconcile.IntervalSeconds < 0 {
		c.Reconcile.IntervalSeconds = 0
	}
	if c.Reconcile.Concurrency <= 0 {
		c.Reconcile.Concurrency = defaultReconcileConcurrency
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("LINKHAUL_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
