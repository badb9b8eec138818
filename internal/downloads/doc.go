// Package downloads orchestrates single downloads against the aria2 engine.
//
// A download is persisted as PENDING before it is handed to the engine; an
// engine failure leaves it FAILED with the cause recorded. Status is pulled:
// Reconcile reads the engine's view and writes only what changed. All
// mutations of one download hold its keylock entry.
package downloads
