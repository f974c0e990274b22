// Package config holds nexusd configuration. Defaults come from environment
// variables and can be overridden with command line flags; servers are
// declared in a YAML file.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DaemonConfig holds configuration for the nexusd binary.
type DaemonConfig struct {
	LogLevel       string
	StatusAddr     string
	AllowedOrigins []string
	RequestTimeout time.Duration
	ServersFile    string
	Reconnect      bool
}

// BindFlags populates the struct with defaults from environment variables and
// binds command line flags so main can call flag.Parse().
func (c *DaemonConfig) BindFlags() {
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.StatusAddr = getEnv("STATUS_ADDR", ":4400")
	c.AllowedOrigins = splitComma(getEnv("ALLOWED_ORIGINS", ""))
	rt, _ := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s"))
	c.RequestTimeout = rt
	c.ServersFile = getEnv("SERVERS_FILE", "servers.yaml")
	c.Reconnect = getEnv("RECONNECT", "true") == "true"

	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (trace, debug, info, warn, error)")
	flag.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "listen address for the status and metrics HTTP server; empty disables it")
	flag.Func("allowed-origins", "comma separated CORS origins for the status server", func(v string) error { c.AllowedOrigins = splitComma(v); return nil })
	flag.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "maximum duration to wait for a response on a streaming transport")
	flag.StringVar(&c.ServersFile, "servers-file", c.ServersFile, "YAML file declaring the tool servers to register")
	flag.BoolVar(&c.Reconnect, "reconnect", c.Reconnect, "keep streaming servers connected with backoff")
}

// ServerDecl is one entry of the servers file.
type ServerDecl struct {
	ID      string            `yaml:"id"`
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Options map[string]any    `yaml:"options"`
}

type serversFile struct {
	Servers []ServerDecl `yaml:"servers"`
}

// LoadServers parses the servers file. Entries without an id or url are
// rejected; the transport type is validated later, at connect time.
func LoadServers(path string) ([]ServerDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f serversFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, s := range f.Servers {
		if s.ID == "" || s.URL == "" {
			return nil, fmt.Errorf("parse %s: server %d: id and url are required", path, i)
		}
	}
	return f.Servers, nil
}

func splitComma(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func getEnv(k, d string) string {
	if v := env(k); v != "" {
		return v
	}
	return d
}

var env = os.Getenv
