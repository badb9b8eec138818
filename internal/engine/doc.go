// Package engine is the aria2 JSON-RPC client.
//
// A Client is built from config.Engine and connected once with Connect. The
// reconnect policy (once, never, always) governs calls made while the
// connection is down. Transport failures surface as ErrUnavailable and
// JSON-RPC error objects as *RPCError, so callers can tell an unreachable
// engine apart from a rejected request.
package engine
