package nexus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// sseRPCServer serves the event stream on GET and the parallel JSON-RPC
// exchange on POST, the way an MCP tool server exposes an SSE endpoint.
func sseRPCServer(t *testing.T, notifications []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fl, ok := w.(http.Flusher)
			if !ok {
				t.Error("response writer is not a flusher")
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			fl.Flush()
			for _, n := range notifications {
				fmt.Fprintf(w, "data: %s\n\n", n)
				fl.Flush()
			}
			<-r.Context().Done()
			return
		}
		var req struct {
			ID     string `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Method == "explode" {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"error":{"message":"boom"}}`, req.ID)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":"pong"}`, req.ID)
	}))
}

func TestSSENotificationFanOut(t *testing.T) {
	srv := sseRPCServer(t, []string{`{"event":"tick","n":1}`})
	defer srv.Close()

	c := newTestClient(0)
	c.RegisterServer("srv1", EndpointConfig{Type: "sse", URL: srv.URL})
	defer c.Close()

	gotMessage := make(chan struct{}, 1)
	gotTick := make(chan struct{}, 1)
	c.Subscribe("srv1:message", func(any) {
		select {
		case gotMessage <- struct{}{}:
		default:
		}
	})
	c.Subscribe("srv1:tick", func(data any) {
		raw, ok := data.(json.RawMessage)
		if !ok {
			t.Errorf("expected raw payload, got %T", data)
		}
		var n struct {
			N int `json:"n"`
		}
		if json.Unmarshal(raw, &n) != nil || n.N != 1 {
			t.Errorf("unexpected tick payload %s", raw)
		}
		select {
		case gotTick <- struct{}{}:
		default:
		}
	})

	if err := c.ConnectServer(context.Background(), "srv1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitSignal(t, gotMessage, "message event")
	waitSignal(t, gotTick, "tick event")
}

func TestSSERequestUsesParallelHTTPExchange(t *testing.T) {
	srv := sseRPCServer(t, nil)
	defer srv.Close()

	c := newTestClient(0)
	c.RegisterServer("srv1", EndpointConfig{Type: "sse", URL: srv.URL})
	defer c.Close()
	if err := c.ConnectServer(context.Background(), "srv1"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	res, err := c.SendRequest(context.Background(), "srv1", "ping", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var got string
	if err := json.Unmarshal(res, &got); err != nil || got != "pong" {
		t.Fatalf("expected \"pong\", got %s (%v)", res, err)
	}
	if c.corr.size() != 0 {
		t.Fatalf("pending map not empty after sse request: %d", c.corr.size())
	}
}

func TestSSERequestRemoteError(t *testing.T) {
	srv := sseRPCServer(t, nil)
	defer srv.Close()

	c := newTestClient(0)
	c.RegisterServer("srv1", EndpointConfig{Type: "sse", URL: srv.URL})
	defer c.Close()
	if err := c.ConnectServer(context.Background(), "srv1"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	_, err := c.SendRequest(context.Background(), "srv1", "explode", nil)
	var rerr *RemoteError
	if !errors.As(err, &rerr) || rerr.Message != "boom" {
		t.Fatalf("expected RemoteError boom, got %v", err)
	}
}

func TestSSERequestUnconnected(t *testing.T) {
	c := newTestClient(0)
	c.RegisterServer("srv1", EndpointConfig{Type: "sse", URL: "http://127.0.0.1:1/rpc"})
	_, err := c.SendRequest(context.Background(), "srv1", "ping", nil)
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestSSEConnectFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no stream here", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(0)
	c.RegisterServer("srv1", EndpointConfig{Type: "sse", URL: srv.URL})
	if err := c.ConnectServer(context.Background(), "srv1"); !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
	if c.IsConnected("srv1") {
		t.Fatal("failed sse connect left a live slot")
	}
}

func TestSSERemoteCloseEndsConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		// end the stream right away
	}))
	defer srv.Close()

	c := newTestClient(0)
	c.RegisterServer("srv1", EndpointConfig{Type: "sse", URL: srv.URL})
	disconnected := make(chan struct{}, 1)
	c.Subscribe("srv1:disconnected", func(any) {
		select {
		case disconnected <- struct{}{}:
		default:
		}
	})
	if err := c.ConnectServer(context.Background(), "srv1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitSignal(t, disconnected, "disconnected event after stream end")
	if c.IsConnected("srv1") {
		t.Fatal("slot still live after stream end")
	}
}
