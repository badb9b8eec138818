// Package logging assembles structured slog loggers and formatting helpers used
// across linkhaul.
//
// It owns the configurable console/JSON handlers, rotates file output with
// lumberjack, and exposes context-aware helpers so orchestration code can tag
// log lines with download IDs, container IDs, and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
