// SPDX-License-Identifier: BSD-3-Clause

package orchestrator

import (
	"log/slog"
	"time"

	"github.com/btmgrd/btadapterd/pkg/core"
)

// DefaultTimeout bounds how long the supervision tree waits for a
// component service to start or stop before treating it as hung.
const DefaultTimeout = 10 * time.Second

// DefaultPidDir is the default directory pidwatcher watches for
// bluetoothN.pid files, per spec §4.4.
const DefaultPidDir = "/var/run/bluetooth"

type config struct {
	name    string
	id      string
	logger  *slog.Logger
	timeout time.Duration
	pidDir  string

	resetOnRestartCount int

	pm    core.ProcessManager
	cfg   core.ConfigSource
	reset core.HciReset
	sink  core.NotificationSink
}

// Option configures an Orchestrator.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithName sets the orchestrator's service.Service name.
func WithName(name string) Option {
	return optionFunc(func(c *config) { c.name = name })
}

// WithID sets a persistent instance identifier. If not set, an ephemeral
// UUID is generated at Run time.
func WithID(id string) Option {
	return optionFunc(func(c *config) { c.id = id })
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *config) { c.logger = logger })
}

// WithTimeout sets the per-service supervision timeout.
func WithTimeout(timeout time.Duration) Option {
	return optionFunc(func(c *config) { c.timeout = timeout })
}

// WithPidDir overrides the directory pidwatcher watches.
func WithPidDir(dir string) Option {
	return optionFunc(func(c *config) { c.pidDir = dir })
}

// WithResetOnRestartCount overrides RESET_ON_RESTART_COUNT (spec §5),
// the consecutive-restart threshold after which StateCore escalates to a
// hardware reset.
func WithResetOnRestartCount(n int) Option {
	return optionFunc(func(c *config) { c.resetOnRestartCount = n })
}

// WithProcessManager supplies the ProcessManager collaborator. Required.
func WithProcessManager(pm core.ProcessManager) Option {
	return optionFunc(func(c *config) { c.pm = pm })
}

// WithConfigSource supplies the ConfigSource collaborator. Required.
func WithConfigSource(cfg core.ConfigSource) Option {
	return optionFunc(func(c *config) { c.cfg = cfg })
}

// WithHciReset supplies the HciReset collaborator. Required.
func WithHciReset(reset core.HciReset) Option {
	return optionFunc(func(c *config) { c.reset = reset })
}

// WithNotificationSink supplies the NotificationSink collaborator. If not
// set, notifications are discarded (bus.Noop).
func WithNotificationSink(sink core.NotificationSink) Option {
	return optionFunc(func(c *config) { c.sink = sink })
}
