// Package natsconn opens the JetStream connection shared by the storage
// components, optionally backed by an in-process nats-server.
package natsconn

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/nadzzz/moodshift/internal/config"
)

const (
	readyTimeout = 10 * time.Second
	drainTimeout = 10 * time.Second
)

// Conn bundles the client connection, its JetStream handle and, when
// embedded, the server it is connected to.
type Conn struct {
	NC *nats.Conn
	JS jetstream.JetStream

	server *server.Server
	closed chan struct{}
}

// Open dials cfg.URL, or starts an embedded JetStream server first when
// cfg.Embedded is set.
func Open(cfg config.NATSConfig) (*Conn, error) {
	c := &Conn{closed: make(chan struct{})}
	url := cfg.URL

	if cfg.Embedded {
		srv, err := StartEmbedded(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		c.server = srv
		url = srv.ClientURL()
	}

	nc, err := nats.Connect(url,
		nats.Name("moodshift"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(*nats.Conn) { close(c.closed) }),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	c.NC = nc

	js, err := jetstream.New(nc)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}
	c.JS = js

	slog.Info("nats connected", "url", url, "embedded", cfg.Embedded)
	return c, nil
}

// StartEmbedded runs a JetStream-enabled server on a random local port.
func StartEmbedded(storeDir string) (*server.Server, error) {
	srv, err := server.NewServer(&server.Options{
		ServerName: "moodshift-embedded",
		Host:       "127.0.0.1",
		Port:       server.RANDOM_PORT,
		JetStream:  true,
		StoreDir:   storeDir,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedded nats server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(readyTimeout) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready after %s", readyTimeout)
	}
	return srv, nil
}

// Healthy reports whether the client connection is up.
func (c *Conn) Healthy() error {
	if c.NC == nil || !c.NC.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

// Close drains the connection, waits for the drain to finish and then stops
// the embedded server, if any.
func (c *Conn) Close() {
	if c.NC != nil {
		if err := c.NC.Drain(); err != nil {
			c.NC.Close()
		} else {
			select {
			case <-c.closed:
			case <-time.After(drainTimeout + time.Second):
				slog.Warn("nats drain did not finish", "timeout", drainTimeout)
				c.NC.Close()
			}
		}
	}
	if c.server != nil {
		c.server.Shutdown()
		c.server.WaitForShutdown()
	}
}
