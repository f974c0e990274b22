// Package wire defines the JSON-RPC 2.0 envelopes exchanged with MCP tool
// servers over every transport.
package wire

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Version is the JSON-RPC protocol version carried by every request.
const Version = "2.0"

// Request is an outbound call envelope. The same body is used for an HTTP
// POST and for a WebSocket text frame.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// RPCError is the structured error a server may return in place of a result.
type RPCError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// Message is an inbound payload from a server. It is a response when ID
// matches an outstanding request, otherwise a notification. Event, when
// present, names a more specific fan-out topic.
type Message struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
}

// CorrelationID normalizes the id field to the string form used as the
// pending-request key. Servers are expected to echo ids verbatim, but a
// numeric echo is tolerated.
func (m *Message) CorrelationID() string {
	if len(m.ID) == 0 || string(m.ID) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.ID, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(m.ID, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return strings.TrimSpace(string(m.ID))
}
