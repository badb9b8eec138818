// Package store persists downloads and containers in SQLite.
//
// The Store wraps a modernc.org/sqlite connection configured for WAL mode,
// foreign keys, and a generous busy timeout, and applies the embedded
// migrations on open. Domain types (Download, Container, their status enums
// and the typed extraction payload) live here as well so every layer shares a
// single vocabulary.
//
// Lookups return (nil, nil) when a record does not exist; callers decide
// whether that is a not-found outcome. Writes retry briefly on SQLITE_BUSY so
// the CLI and the daemon can share one database file.
package store
