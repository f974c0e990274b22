// Package nexus is a hub client for remote MCP tool servers. It keeps a
// registry of named endpoints reachable over HTTP, SSE or WebSocket,
// dispatches JSON-RPC 2.0 calls over whichever transport an endpoint was
// declared with, correlates streaming responses back to their callers, and
// fans unsolicited server messages out to topic subscribers.
//
// The client performs no automatic reconnect or retry; that policy belongs to
// the caller (see cmd/nexusd for an example).
package nexus
