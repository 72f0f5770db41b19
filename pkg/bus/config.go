// SPDX-License-Identifier: BSD-3-Clause

package bus

import (
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const (
	// DefaultServiceName is the service.Service name used when no
	// WithServiceName option is given.
	DefaultServiceName = "notification-bus"
	// DefaultServerName is the embedded NATS server's advertised name.
	DefaultServerName = "btadapterd-bus"
	// DefaultStartupTimeout bounds how long Run waits for the embedded
	// server to become ready.
	DefaultStartupTimeout = 5 * time.Second
	// DefaultShutdownTimeout bounds how long Run waits for a graceful
	// shutdown before giving up.
	DefaultShutdownTimeout = 5 * time.Second
)

type config struct {
	serviceName     string
	serverName      string
	dontListen      bool
	startupTimeout  time.Duration
	shutdownTimeout time.Duration
	maxPayload      int32
	storeDir        string
}

func (c *config) toServerOptions() *server.Options {
	return &server.Options{
		ServerName:  c.serverName,
		DontListen:  c.dontListen,
		MaxPayload:  c.maxPayload,
		StoreDir:    c.storeDir,
		NoLog:       true,
		NoSigs:      true,
	}
}

// Option configures a Bus.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithServiceName overrides the service.Service name.
func WithServiceName(name string) Option {
	return optionFunc(func(c *config) { c.serviceName = name })
}

// WithServerName overrides the embedded NATS server's advertised name.
func WithServerName(name string) Option {
	return optionFunc(func(c *config) { c.serverName = name })
}

// WithStoreDir sets a filesystem directory for the embedded server. Not
// required: notifications are transient and need no persistence, but some
// deployments want server diagnostics written somewhere stable.
func WithStoreDir(dir string) Option {
	return optionFunc(func(c *config) { c.storeDir = dir })
}
