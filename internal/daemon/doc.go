// Package daemon coordinates the long-running linkhaul process.
//
// It wires the store, the engine client, and the downloads and containers
// orchestrators into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon serves the HTTP API and, when
// reconcile.interval_seconds is set, runs a periodic sweep that pulls engine
// state into the store.
//
// Keep orchestration logic here: download and container rules live in their
// own packages while the daemon focuses on startup, shutdown, and transport.
package daemon
