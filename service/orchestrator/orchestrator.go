// SPDX-License-Identifier: BSD-3-Clause

// Package orchestrator wires the HCI listener, PID watcher, event loop,
// and notification bus into a single supervised process: an oversight
// supervision tree restarts any of them on failure, started alongside the
// tree itself by nursery.
package orchestrator

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"

	"cirello.io/oversight/v2"
	"github.com/arunsworld/nursery"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/btmgrd/btadapterd/pkg/bus"
	"github.com/btmgrd/btadapterd/pkg/core"
	"github.com/btmgrd/btadapterd/pkg/log"
	"github.com/btmgrd/btadapterd/pkg/process"
	"github.com/btmgrd/btadapterd/service"
	"github.com/btmgrd/btadapterd/service/eventloop"
	"github.com/btmgrd/btadapterd/service/hcilistener"
	"github.com/btmgrd/btadapterd/service/pidwatcher"
)

// Compile-time assertion that Orchestrator implements service.Service.
var _ service.Service = (*Orchestrator)(nil)

// Orchestrator manages the lifecycle of the Bluetooth adapter manager's
// component services under a supervised, fault-tolerant process tree.
type Orchestrator struct {
	config

	loop atomic.Pointer[core.EventLoop]
}

// Requests returns the AdapterRequester external callers use to push
// StartAdapter/StopAdapter/SetDesiredDefaultAdapter requests (spec §2),
// or nil if Run has not yet built the event loop. Any out-of-scope client
// surface (spec §1) is expected to poll or wait on this before use.
func (o *Orchestrator) Requests() core.AdapterRequester {
	loop := o.loop.Load()
	if loop == nil {
		return nil
	}
	return loop
}

// New creates an Orchestrator with the provided options applied over the
// defaults. A StateCore/EventLoop pair is built internally from the
// ConfigSource, NotificationSink, ProcessManager, and HciReset
// collaborators supplied via options.
func New(opts ...Option) *Orchestrator {
	cfg := &config{
		name:                "orchestrator",
		id:                  "",
		logger:              log.NewDefaultLogger(),
		timeout:             DefaultTimeout,
		pidDir:              DefaultPidDir,
		resetOnRestartCount: core.DefaultResetOnRestartCount,
		sink:                bus.Noop{},
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &Orchestrator{config: *cfg}
}

// Name implements service.Service.
func (o *Orchestrator) Name() string { return o.name }

// Run builds the component services, assembles the oversight supervision
// tree, and runs it until ctx is canceled or a fatal error occurs.
func (o *Orchestrator) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) (err error) {
	if o.name == "" {
		return ErrNameEmpty
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %w: %v", o.Name(), ErrPanicked, r)
		}
	}()

	l := o.logger
	if l == nil {
		l = log.GetGlobalLogger()
	}

	if o.id == "" {
		o.id = uuid.NewString()
	}
	l.InfoContext(ctx, "starting orchestrator", "service", o.name, "id", o.id)

	if o.pm == nil || o.cfg == nil || o.reset == nil {
		return ErrMissingConfiguration
	}

	table := core.NewAdapterTable()
	sc := core.NewStateCore(table, l, o.resetOnRestartCount)
	if err := sc.Seed(ctx, o.cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigSeed, err)
	}
	loop := core.NewEventLoop(sc, o.pm, o.reset, o.sink, l)
	o.loop.Store(loop)

	embeddedBus := bus.New(bus.WithServiceName(o.name + "-bus"))

	svcs := map[string]service.Service{
		embeddedBus.Name():            embeddedBus,
		"event-loop":                  eventloop.New(loop),
		"pid-watcher":                 pidwatcher.New(loop, o.pidDir),
		"hci-listener":                hcilistener.New(loop, o.cfg),
	}

	supervisionTree := oversight.New(
		oversight.NeverHalt(),
		oversight.DefaultRestartStrategy(),
		oversight.WithLogger(log.NewOversightLogger(l)),
	)

	supervise := func(ctx context.Context, c chan error) {
		c <- supervisionTree.Start(ctx)
	}

	spawnProcs := func(ctx context.Context, c chan error) {
		var conn nats.InProcessConnProvider
		if ipcConn != nil {
			conn = ipcConn
		} else {
			conn = embeddedBus.ConnProvider()
		}

		for name, svc := range svcs {
			if isNilService(svc) {
				continue
			}
			if err := supervisionTree.Add(
				process.New(svc, conn),
				oversight.Transient(),
				oversight.Timeout(o.timeout),
				name,
			); err != nil {
				c <- fmt.Errorf("%w %s to tree: %w", ErrAddProcess, name, err)
				return
			}
		}
	}

	l.InfoContext(ctx, "starting component services", "service", o.name)
	return nursery.RunConcurrentlyWithContext(ctx, supervise, spawnProcs)
}

// isNilService reports whether svc wraps a nil concrete pointer, which a
// plain svc == nil interface comparison misses.
func isNilService(svc service.Service) bool {
	if svc == nil {
		return true
	}
	v := reflect.ValueOf(svc)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
