// Package containers groups downloads into named containers.
//
// Containers come from an extracted page (CreateFromURL) or a caller-supplied
// URL list (CreateManual). Each link becomes a download through the downloads
// orchestrator. The container status is never pushed by members; Reconcile
// derives it from member counts on demand.
package containers
