package nexus

import "errors"

// Failure taxonomy surfaced by Connect/Disconnect/SendRequest. Callers match
// with errors.Is; RemoteError additionally carries the far end's message and
// is matched with errors.As.
var (
	// ErrUnknownServer means the operation referenced an unregistered id.
	ErrUnknownServer = errors.New("unknown server")
	// ErrConnectionFailed means the transport-level open failed.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrConnectionClosed means a send was attempted with no live handle.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrRequestTimeout means no response arrived within the request timeout.
	ErrRequestTimeout = errors.New("request timeout")
	// ErrUnsupportedTransport means the endpoint declared an unrecognized
	// transport kind. Reported at connect time, not at registration.
	ErrUnsupportedTransport = errors.New("unsupported transport")
)

// RemoteError is a structured error body returned by the far end.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string { return e.Message }
