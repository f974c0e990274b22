// Package transport implements the three wire mechanisms used to reach MCP
// tool servers: one-shot HTTP POST, Server-Sent Events and WebSocket.
package transport

// Kind selects the wire mechanism for an endpoint.
type Kind string

const (
	KindHTTP      Kind = "http"
	KindSSE       Kind = "sse"
	KindWebSocket Kind = "websocket"
)

// Known reports whether k is a recognized transport kind. Unknown kinds are
// rejected at connect time, not at registration.
func Known(k Kind) bool {
	switch k {
	case KindHTTP, KindSSE, KindWebSocket:
		return true
	}
	return false
}

// Endpoint describes a registered remote server.
type Endpoint struct {
	ID      string
	Kind    Kind
	URL     string
	Headers map[string]string
	Options map[string]any
}
