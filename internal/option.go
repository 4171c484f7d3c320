package internal

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/chancery/internal/dispatch"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	registry *prometheus.Registry
	relay    dispatch.Relay
	logOut   io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRegistry sets the Prometheus registry served at /metrics.
// A fresh registry is created when none is given.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *application) {
		a.registry = reg
	}
}

// WithRelay replaces the outbound relay used by the dispatch pipeline.
func WithRelay(r dispatch.Relay) Option {
	return func(a *application) {
		a.relay = r
	}
}

// WithLogOutput redirects structured logs. MCP mode defaults to stderr
// because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
