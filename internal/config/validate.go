package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateExtract(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	return nil
}

func (c *Config) validateEngine() error {
	parsed, err := url.Parse(c.Engine.URL)
	if err != nil {
		return fmt.Errorf("engine.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("engine.url must use http or https, got %q", c.Engine.URL)
	}
	switch c.Engine.Reconnect {
	case ReconnectOnce, ReconnectNever, ReconnectAlways:
	default:
		return fmt.Errorf("engine.reconnect must be one of once, never, always (got %q)", c.Engine.Reconnect)
	}
	return nil
}

func (c *Config) validateExtract() error {
	parsed, err := url.Parse(c.Extract.FilecryptBaseURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("extract.filecrypt_base_url must be an absolute URL (got %q)", c.Extract.FilecryptBaseURL)
	}
	for i, rule := range c.Extract.Captcha {
		if strings.TrimSpace(rule.Element) == "" {
			return fmt.Errorf("extract.captcha[%d].element must be set", i)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL (got %q)", c.Notifications.NtfyTopic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
