// Package services defines shared utilities consumed by the orchestrators and
// the outer API surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp download IDs, container IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so transport layers can
//     map failures (not found, validation, upstream) without string matching.
//
// Use these helpers when wiring new orchestration logic so operational
// behaviour stays uniform across the daemon and CLI.
package services
