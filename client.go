package nexus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gigamonkeyx/nexus/internal/metrics"
	"github.com/gigamonkeyx/nexus/internal/transport"
	"github.com/gigamonkeyx/nexus/internal/wire"
)

// DefaultRequestTimeout bounds how long SendRequest waits for a response on a
// streaming transport.
const DefaultRequestTimeout = 30 * time.Second

// EndpointConfig declares how to reach a remote tool server. Type must be one
// of "http", "sse" or "websocket"; unknown values are rejected when Connect is
// called, not at registration.
type EndpointConfig struct {
	Type    string            `json:"type" yaml:"type"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Options map[string]any    `json:"options,omitempty" yaml:"options,omitempty"`
}

// Options configures a Client. The zero value is usable; the logger defaults
// to a disabled one.
type Options struct {
	// Logger is injected at construction so multiple clients in one process
	// never share hidden state.
	Logger zerolog.Logger

	// RequestTimeout overrides DefaultRequestTimeout when positive.
	RequestTimeout time.Duration

	// HTTPClient performs one-shot JSON-RPC exchanges. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// connection is the live handle for a connected endpoint. The kind tag picks
// the behavior; exactly one of ws/sse is set for streaming transports and
// neither for the stateless http sentinel.
type connection struct {
	kind transport.Kind
	ws   *transport.WSConn
	sse  *transport.SSEConn
}

func (c *connection) close() {
	switch c.kind {
	case transport.KindWebSocket:
		_ = c.ws.Close()
	case transport.KindSSE:
		_ = c.sse.Close()
	}
}

// Client is the hub. It owns the endpoint registry, the live connection map,
// the request correlator and the event fan-out; all mutation goes through its
// methods and the maps stay consistent: a live connection never outlives its
// endpoint entry, and at most one live connection exists per server id.
type Client struct {
	id      string
	log     zerolog.Logger
	httpc   *http.Client
	streamc *http.Client
	timeout time.Duration

	mu        sync.Mutex
	endpoints map[string]transport.Endpoint
	conns     map[string]*connection
	dialing   map[string]bool

	corr *correlator
	bus  *eventBus
}

// New constructs a Client.
func New(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = http.DefaultClient
	}
	log := opts.Logger
	c := &Client{
		id:      uuid.NewString(),
		log:     log,
		httpc:   httpc,
		streamc: &http.Client{Transport: httpc.Transport},
		timeout: timeout,

		endpoints: make(map[string]transport.Endpoint),
		conns:     make(map[string]*connection),
		dialing:   make(map[string]bool),

		corr: newCorrelator(),
		bus:  newEventBus(log),
	}
	return c
}

// ID returns the hub instance id.
func (c *Client) ID() string { return c.id }

// RegisterServer inserts or overwrites the endpoint entry for serverID.
// Re-registration is idempotent and never touches an existing live
// connection; disconnect first when replacing a live endpoint.
func (c *Client) RegisterServer(serverID string, cfg EndpointConfig) {
	ep := transport.Endpoint{
		ID:      serverID,
		Kind:    transport.Kind(cfg.Type),
		URL:     cfg.URL,
		Headers: cfg.Headers,
		Options: cfg.Options,
	}
	c.mu.Lock()
	c.endpoints[serverID] = ep
	c.mu.Unlock()
	c.log.Info().Str("server", serverID).Str("transport", cfg.Type).Str("url", cfg.URL).Msg("server registered")
}

// UnregisterServer forcibly disconnects serverID when connected, then removes
// it entirely. Unknown ids are a no-op besides a warning.
func (c *Client) UnregisterServer(serverID string) {
	c.mu.Lock()
	if _, ok := c.endpoints[serverID]; !ok {
		c.mu.Unlock()
		c.log.Warn().Str("server", serverID).Msg("unregister: unknown server")
		return
	}
	conn := c.conns[serverID]
	delete(c.conns, serverID)
	delete(c.endpoints, serverID)
	c.mu.Unlock()
	if conn != nil {
		conn.close()
		metrics.SetConnected(serverID, false)
		c.bus.publish(serverID+":disconnected", serverID)
	}
	metrics.ForgetServer(serverID)
	c.log.Info().Str("server", serverID).Msg("server unregistered")
}

// ConnectServer establishes the live connection for serverID. Connecting an
// already connected server is a benign no-op. http endpoints are marked
// connected immediately; sse and websocket endpoints dial, and on success a
// "{serverId}:connected" event is published. The dial honors ctx but has no
// timeout of its own.
func (c *Client) ConnectServer(ctx context.Context, serverID string) error {
	c.mu.Lock()
	ep, ok := c.endpoints[serverID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("connect %s: %w", serverID, ErrUnknownServer)
	}
	if c.conns[serverID] != nil {
		c.mu.Unlock()
		c.log.Debug().Str("server", serverID).Msg("already connected")
		return nil
	}
	if !transport.Known(ep.Kind) {
		c.mu.Unlock()
		return fmt.Errorf("connect %s: %w: %q", serverID, ErrUnsupportedTransport, ep.Kind)
	}
	if ep.Kind == transport.KindHTTP {
		c.conns[serverID] = &connection{kind: transport.KindHTTP}
		c.mu.Unlock()
		metrics.SetConnected(serverID, true)
		c.log.Info().Str("server", serverID).Msg("connected (stateless http)")
		return nil
	}
	if c.dialing[serverID] {
		c.mu.Unlock()
		c.log.Debug().Str("server", serverID).Msg("connect already in progress")
		return nil
	}
	c.dialing[serverID] = true
	c.mu.Unlock()

	conn := &connection{kind: ep.Kind}
	onMessage := func(data []byte) { c.handleInbound(serverID, data) }
	onDown := func(err error) { c.handleDown(serverID, conn, err) }

	var dialErr error
	switch ep.Kind {
	case transport.KindWebSocket:
		conn.ws, dialErr = transport.DialWS(ctx, ep, onMessage, onDown)
	case transport.KindSSE:
		conn.sse, dialErr = transport.DialSSE(ctx, c.streamc, ep, onMessage, onDown)
	}

	c.mu.Lock()
	delete(c.dialing, serverID)
	if dialErr != nil {
		c.mu.Unlock()
		c.log.Error().Str("server", serverID).Err(dialErr).Msg("connect failed")
		return fmt.Errorf("connect %s: %w: %v", serverID, ErrConnectionFailed, dialErr)
	}
	if _, ok := c.endpoints[serverID]; !ok {
		// unregistered while the dial was in flight
		c.mu.Unlock()
		conn.close()
		return fmt.Errorf("connect %s: %w", serverID, ErrUnknownServer)
	}
	c.conns[serverID] = conn
	c.mu.Unlock()

	metrics.SetConnected(serverID, true)
	c.log.Info().Str("server", serverID).Str("transport", string(ep.Kind)).Msg("connected")
	c.bus.publish(serverID+":connected", serverID)
	return nil
}

// DisconnectServer closes the live handle and publishes
// "{serverId}:disconnected". Disconnecting an unconnected server is a no-op
// besides a warning.
func (c *Client) DisconnectServer(serverID string) error {
	c.mu.Lock()
	conn := c.conns[serverID]
	if conn == nil {
		c.mu.Unlock()
		c.log.Warn().Str("server", serverID).Msg("disconnect: not connected")
		return nil
	}
	delete(c.conns, serverID)
	c.mu.Unlock()
	conn.close()
	metrics.SetConnected(serverID, false)
	c.log.Info().Str("server", serverID).Msg("disconnected")
	c.bus.publish(serverID+":disconnected", serverID)
	return nil
}

// handleDown runs when a streaming connection's read loop ends. An explicit
// disconnect or unregister empties the slot first, so the identity check
// keeps the lifecycle events from firing twice.
func (c *Client) handleDown(serverID string, conn *connection, cause error) {
	c.mu.Lock()
	if c.conns[serverID] != conn {
		c.mu.Unlock()
		return
	}
	delete(c.conns, serverID)
	c.mu.Unlock()
	metrics.SetConnected(serverID, false)
	if cause != nil {
		c.log.Warn().Str("server", serverID).Err(cause).Msg("stream error")
		c.bus.publish(serverID+":error", cause.Error())
	} else {
		c.log.Info().Str("server", serverID).Msg("stream closed by remote")
	}
	c.bus.publish(serverID+":disconnected", serverID)
}

// handleInbound parses one stream payload. Every parsed payload is published
// on "{serverId}:message"; a payload whose id matches a pending request
// settles it; a payload carrying an event field is additionally published on
// "{serverId}:{event}".
func (c *Client) handleInbound(serverID string, data []byte) {
	metrics.RecordInboundMessage(serverID)
	var msg wire.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn().Str("server", serverID).Err(err).Msg("discarding unparseable stream payload")
		return
	}
	payload := json.RawMessage(data)
	c.bus.publish(serverID+":message", payload)
	if cid := msg.CorrelationID(); cid != "" {
		var rerr error
		if msg.Error != nil {
			rerr = &RemoteError{Code: msg.Error.Code, Message: msg.Error.Message}
		}
		if c.corr.settle(cid, msg.Result, rerr) {
			c.log.Debug().Str("server", serverID).Str("id", cid).Msg("response correlated")
		}
	}
	if msg.Event != "" {
		c.bus.publish(serverID+":"+msg.Event, payload)
	}
}

// SendRequest dispatches a JSON-RPC call to serverID and returns the raw
// result. http endpoints use a one-shot exchange; websocket endpoints write a
// frame and wait for the correlated response; sse endpoints perform the same
// HTTP exchange as http in parallel because the event stream is
// notifications-only. Streaming calls fail with ErrConnectionClosed when no
// live handle exists and with ErrRequestTimeout when no response arrives in
// time.
func (c *Client) SendRequest(ctx context.Context, serverID, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	c.mu.Lock()
	ep, ok := c.endpoints[serverID]
	conn := c.conns[serverID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("send %s: %w", serverID, ErrUnknownServer)
	}

	res, err := c.dispatch(ctx, ep, conn, serverID, method, params)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordRequest(serverID, outcome)
	metrics.ObserveRequestDuration(serverID, string(ep.Kind), time.Since(start))
	return res, err
}

func (c *Client) dispatch(ctx context.Context, ep transport.Endpoint, conn *connection, serverID, method string, params any) (json.RawMessage, error) {
	switch ep.Kind {
	case transport.KindHTTP:
		return c.httpExchange(ctx, ep, method, params, c.corr.nextID(serverID))
	case transport.KindWebSocket, transport.KindSSE:
	default:
		return nil, fmt.Errorf("send %s: %w: %q", serverID, ErrUnsupportedTransport, ep.Kind)
	}

	if conn == nil || conn.kind != ep.Kind {
		return nil, fmt.Errorf("send %s: %w", serverID, ErrConnectionClosed)
	}

	id := c.corr.nextID(serverID)
	pr := c.corr.add(id)

	if ep.Kind == transport.KindWebSocket {
		body, err := json.Marshal(wire.Request{JSONRPC: wire.Version, Method: method, Params: params, ID: id})
		if err != nil {
			c.corr.take(id)
			return nil, err
		}
		if err := conn.ws.Send(ctx, body); err != nil {
			c.corr.take(id)
			return nil, fmt.Errorf("send %s: %w: %v", serverID, ErrConnectionClosed, err)
		}
	} else {
		// SSE carries no client-to-server channel; run the HTTP exchange in
		// parallel and let its outcome settle the pending entry.
		go func() {
			exctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			res, err := c.httpExchange(exctx, ep, method, params, id)
			c.corr.settle(id, res, err)
		}()
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case out := <-pr.ch:
		return out.result, out.err
	case <-timer.C:
		if _, ok := c.corr.take(id); ok {
			return nil, fmt.Errorf("send %s: %w", serverID, ErrRequestTimeout)
		}
		out := <-pr.ch
		return out.result, out.err
	case <-ctx.Done():
		if _, ok := c.corr.take(id); ok {
			return nil, ctx.Err()
		}
		out := <-pr.ch
		return out.result, out.err
	}
}

// httpExchange performs one request/response JSON-RPC exchange and decodes
// the result or the remote error.
func (c *Client) httpExchange(ctx context.Context, ep transport.Endpoint, method string, params any, id string) (json.RawMessage, error) {
	body, err := json.Marshal(wire.Request{JSONRPC: wire.Version, Method: method, Params: params, ID: id})
	if err != nil {
		return nil, err
	}
	data, err := transport.Exchange(ctx, c.httpc, ep, body)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w: %v", ep.ID, ErrConnectionFailed, err)
	}
	var msg wire.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("post %s: decode response: %w", ep.ID, err)
	}
	if msg.Error != nil {
		return nil, &RemoteError{Code: msg.Error.Code, Message: msg.Error.Message}
	}
	return msg.Result, nil
}

// IsConnected reports whether a live connection exists for serverID.
func (c *Client) IsConnected(serverID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[serverID] != nil
}

// GetServers lists registered server ids in lexical order.
func (c *Client) GetServers() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.endpoints))
	for id := range c.endpoints {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// GetConnectedServers lists connected server ids in lexical order.
func (c *Client) GetConnectedServers() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.conns))
	for id := range c.conns {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Subscribe registers fn for topic and returns an unsubscribe closure.
// Standard topics are "{serverId}:connected", "{serverId}:disconnected",
// "{serverId}:error", "{serverId}:message" and "{serverId}:{event}".
func (c *Client) Subscribe(topic string, fn EventHandler) func() {
	return c.bus.subscribe(topic, fn)
}

// Close disconnects every connected server. Registrations are kept.
func (c *Client) Close() {
	for _, id := range c.GetConnectedServers() {
		_ = c.DisconnectServer(id)
	}
}
