package wire

import (
	"encoding/json"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"string id", `{"id":"srv1_7","result":"ok"}`, "srv1_7"},
		{"numeric id", `{"id":42,"result":"ok"}`, "42"},
		{"no id", `{"event":"tick"}`, ""},
		{"null id", `{"id":null}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m Message
			if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := m.CorrelationID(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRequestEnvelope(t *testing.T) {
	b, err := json.Marshal(Request{JSONRPC: Version, Method: "tools/list", Params: map[string]any{}, ID: "srv1_1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var env map[string]any
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env["jsonrpc"] != "2.0" || env["method"] != "tools/list" || env["id"] != "srv1_1" {
		t.Fatalf("unexpected envelope %s", b)
	}
}
