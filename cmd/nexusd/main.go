package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/gigamonkeyx/nexus"
	"github.com/gigamonkeyx/nexus/internal/config"
	"github.com/gigamonkeyx/nexus/internal/logx"
	"github.com/gigamonkeyx/nexus/internal/metrics"
	"github.com/gigamonkeyx/nexus/internal/reconnect"
	"github.com/gigamonkeyx/nexus/internal/status"
)

func main() {
	var cfg config.DaemonConfig
	cfg.BindFlags()
	flag.Parse()

	log := logx.New(cfg.LogLevel)

	servers, err := config.LoadServers(cfg.ServersFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.ServersFile).Msg("load servers")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	preg := prometheus.NewRegistry()
	metrics.Register(preg)

	client := nexus.New(nexus.Options{Logger: log, RequestTimeout: cfg.RequestTimeout})
	log.Info().Str("instance", client.ID()).Int("servers", len(servers)).Msg("nexusd starting")

	for _, s := range servers {
		client.RegisterServer(s.ID, nexus.EndpointConfig{Type: s.Type, URL: s.URL, Headers: s.Headers, Options: s.Options})
		watch(client, s.ID, log)
	}

	if cfg.StatusAddr != "" {
		snapshot := func() status.Snapshot {
			return status.Snapshot{
				InstanceID: client.ID(),
				Registered: client.GetServers(),
				Connected:  client.GetConnectedServers(),
			}
		}
		addr, err := status.Start(ctx, log, cfg.StatusAddr, snapshot, preg, cfg.AllowedOrigins)
		if err != nil {
			log.Fatal().Err(err).Msg("status server")
		}
		log.Info().Str("addr", addr).Msg("status server started")
	}

	for _, s := range servers {
		go maintain(ctx, client, s.ID, cfg.Reconnect, log)
	}

	<-ctx.Done()
	client.Close()
	log.Info().Msg("nexusd stopped")
}

// watch logs the fan-out traffic for one server.
func watch(c *nexus.Client, id string, log zerolog.Logger) {
	c.Subscribe(id+":message", func(data any) {
		log.Debug().Str("server", id).Any("payload", data).Msg("message")
	})
	c.Subscribe(id+":error", func(data any) {
		log.Warn().Str("server", id).Any("error", data).Msg("server error")
	})
}

// maintain connects one server and, when reconnect is enabled, re-dials
// streaming transports with backoff after every disconnect. The library
// itself never reconnects; this is the daemon's policy.
func maintain(ctx context.Context, c *nexus.Client, id string, recon bool, log zerolog.Logger) {
	down := make(chan struct{}, 1)
	unsub := c.Subscribe(id+":disconnected", func(any) {
		select {
		case down <- struct{}{}:
		default:
		}
	})
	defer unsub()

	attempt := 0
	for {
		if err := c.ConnectServer(ctx, id); err != nil {
			if !recon {
				log.Error().Str("server", id).Err(err).Msg("connect failed")
				return
			}
			delay := reconnect.Delay(attempt)
			attempt++
			log.Warn().Str("server", id).Dur("backoff", delay).Err(err).Msg("connect failed; retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0
		if !recon {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-down:
		}
	}
}
