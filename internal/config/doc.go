// Package config loads, normalizes, and validates linkhaul configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads secrets from .env files, and honours
// environment fallbacks such as LINKHAUL_ENGINE_SECRET. The Config type
// centralizes every knob the daemon and CLI need: where the database and logs
// live, how to reach the aria2 RPC endpoint, and which hosters and gate
// patterns the link extractor recognizes.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
