package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	data := `
servers:
  - id: weather
    type: websocket
    url: ws://weather.internal/rpc
    headers:
      Authorization: Bearer sekrit
  - id: search
    type: http
    url: http://search.internal/rpc
    options:
      region: us-east
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	servers, err := LoadServers(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if servers[0].ID != "weather" || servers[0].Type != "websocket" {
		t.Fatalf("unexpected first entry %+v", servers[0])
	}
	if servers[0].Headers["Authorization"] != "Bearer sekrit" {
		t.Fatalf("headers not parsed: %+v", servers[0].Headers)
	}
	if servers[1].Options["region"] != "us-east" {
		t.Fatalf("options not parsed: %+v", servers[1].Options)
	}
}

func TestLoadServersRejectsMissingID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	if err := os.WriteFile(path, []byte("servers:\n  - url: http://x/rpc\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadServers(path); err == nil {
		t.Fatal("expected error for entry without id")
	}
}

func TestLoadServersMissingFile(t *testing.T) {
	if _, err := LoadServers(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSplitComma(t *testing.T) {
	got := splitComma(" a, b ,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected split %v", got)
	}
	if splitComma("") != nil {
		t.Fatal("empty input should yield nil")
	}
}
