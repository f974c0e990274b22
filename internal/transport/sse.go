package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

// SSEConn is a live Server-Sent Events stream. SSE has no client-to-server
// channel; requests against an SSE endpoint travel over a parallel HTTP
// exchange while the stream carries unsolicited notifications.
type SSEConn struct {
	cancel context.CancelFunc
	closed atomic.Bool
}

type dialResult struct {
	resp *http.Response
	err  error
}

// DialSSE opens the event stream and starts a reader goroutine. onMessage
// receives the data of each stream event in delivery order; onDown fires once
// when the stream ends, with a nil error for a clean close. The dial itself
// honors ctx; the established stream lives until Close or remote EOF.
func DialSSE(ctx context.Context, client *http.Client, ep Endpoint, onMessage func([]byte), onDown func(error)) (*SSEConn, error) {
	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, ep.URL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	if client == nil {
		client = http.DefaultClient
	}

	done := make(chan dialResult, 1)
	go func() {
		resp, err := client.Do(req)
		done <- dialResult{resp, err}
	}()
	var resp *http.Response
	select {
	case <-ctx.Done():
		cancel()
		go func() {
			if d := <-done; d.resp != nil {
				_ = d.resp.Body.Close()
			}
		}()
		return nil, ctx.Err()
	case d := <-done:
		if d.err != nil {
			cancel()
			return nil, d.err
		}
		resp = d.resp
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("status %s", resp.Status)
	}

	c := &SSEConn{cancel: cancel}
	go c.readLoop(resp.Body, onMessage, onDown)
	return c, nil
}

func (c *SSEConn) readLoop(body io.ReadCloser, onMessage func([]byte), onDown func(error)) {
	defer func() { _ = body.Close() }()
	var data []string
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				onMessage([]byte(strings.Join(data, "\n")))
				data = data[:0]
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event/id/retry fields and comments carry no payload
		}
	}
	err := sc.Err()
	if c.closed.Load() || errors.Is(err, context.Canceled) {
		err = nil
	}
	onDown(err)
}

// Close tears the stream down. The reader goroutine reports through onDown.
func (c *SSEConn) Close() error {
	c.closed.Store(true)
	c.cancel()
	return nil
}
