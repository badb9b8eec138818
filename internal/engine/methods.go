package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"linkhaul/internal/config"
)

func isUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// TransferOptions builds the per-download options linkhaul submits with every
// URI: target directory, segmenting, resume and the optional speed cap.
func TransferOptions(cfg config.Engine, dir string) Options {
	opts := Options{
		"continue": "true",
	}
	if dir = strings.TrimSpace(dir); dir != "" {
		opts["dir"] = dir
	}
	if cfg.MaxConnectionsPerServer > 0 {
		opts["max-connection-per-server"] = strconv.Itoa(cfg.MaxConnectionsPerServer)
	}
	if cfg.Split > 0 {
		opts["split"] = strconv.Itoa(cfg.Split)
	}
	if size := strings.TrimSpace(cfg.MinSplitSize); size != "" {
		opts["min-split-size"] = size
	}
	if cfg.MaxDownloadKiB > 0 {
		opts["max-download-limit"] = strconv.Itoa(cfg.MaxDownloadKiB) + "K"
	}
	return opts
}

// AddURI submits a download and returns its GID.
func (c *Client) AddURI(ctx context.Context, uris []string, opts Options) (string, error) {
	if len(uris) == 0 {
		return "", errors.New("add uri: no uris")
	}
	params := []any{uris}
	if len(opts) > 0 {
		params = append(params, map[string]string(opts))
	}
	var gid string
	if err := c.invoke(ctx, "aria2.addUri", params, &gid); err != nil {
		return "", err
	}
	if gid == "" {
		return "", errors.New("add uri: engine returned empty gid")
	}
	return gid, nil
}

// Status returns the engine's view of a download.
func (c *Client) Status(ctx context.Context, handle string) (*Status, error) {
	var wire wireStatus
	if err := c.invoke(ctx, "aria2.tellStatus", []any{handle}, &wire); err != nil {
		return nil, err
	}
	if wire.GID == "" {
		wire.GID = handle
	}
	return wire.toStatus(), nil
}

// Pause pauses an active or waiting download.
func (c *Client) Pause(ctx context.Context, handle string) error {
	return c.invoke(ctx, "aria2.pause", []any{handle}, nil)
}

// Resume unpauses a paused download.
func (c *Client) Resume(ctx context.Context, handle string) error {
	return c.invoke(ctx, "aria2.unpause", []any{handle}, nil)
}

// Remove removes a download. Force skips aria2's graceful shutdown of
// connections.
func (c *Client) Remove(ctx context.Context, handle string, force bool) error {
	method := "aria2.remove"
	if force {
		method = "aria2.forceRemove"
	}
	return c.invoke(ctx, method, []any{handle}, nil)
}

// GlobalStats returns engine-wide throughput and queue sizes.
func (c *Client) GlobalStats(ctx context.Context) (*GlobalStats, error) {
	var wire wireGlobalStat
	if err := c.invoke(ctx, "aria2.getGlobalStat", nil, &wire); err != nil {
		return nil, err
	}
	return wire.toStats(), nil
}

// Version returns the connected aria2 version.
func (c *Client) Version(ctx context.Context) (*Version, error) {
	var wire struct {
		Version         string   `json:"version"`
		EnabledFeatures []string `json:"enabledFeatures"`
	}
	if err := c.invoke(ctx, "aria2.getVersion", nil, &wire); err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &Version{Version: wire.Version, EnabledFeatures: wire.EnabledFeatures}, nil
}
