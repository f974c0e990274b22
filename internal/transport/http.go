package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Exchange performs a single JSON-RPC request/response HTTP exchange against
// the endpoint and returns the raw response body. Configured endpoint headers
// are applied on top of the protocol headers.
func Exchange(ctx context.Context, client *http.Client, ep Endpoint, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(string(data))
		if msg != "" {
			return nil, fmt.Errorf("status %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	return data, nil
}
