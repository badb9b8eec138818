// Package api defines wire-format types and converters shared by the HTTP
// daemon and the CLI. It translates store models into transport-friendly DTOs
// so clients can render downloads and containers without importing internal
// types.
//
// # Key Types
//
// Download: transport representation of a download with progress, speed, ETA
// and the engine handle.
//
// Container: a container with its roll-up counters and any gate waiting for
// input.
//
// Stats: stored counts merged with live engine throughput.
//
// DaemonStatus: runtime information reported by GET /api/status.
//
// # Converters
//
// FromDownload / FromDownloads: store.Download -> Download.
//
// FromContainer / FromContainers: store.Container -> Container.
//
// FromStats: downloads.GlobalStats -> Stats.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Status enums are exposed as their lowercase
// stored strings. Timestamps use RFC3339 with milliseconds. Passwords never
// leave the process; only their presence is reported.
package api
