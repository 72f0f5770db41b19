// SPDX-License-Identifier: BSD-3-Clause

// Package pidwatcher wraps pkg/pidwatch.Watcher as a service.Service,
// forwarding daemon lifecycle events into a core.EventLoop.
package pidwatcher

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/btmgrd/btadapterd/pkg/core"
	"github.com/btmgrd/btadapterd/pkg/log"
	"github.com/btmgrd/btadapterd/pkg/pidwatch"
	"github.com/btmgrd/btadapterd/service"
)

var _ service.Service = (*PidWatcher)(nil)
var _ pidwatch.Emitter = (*eventLoopEmitter)(nil)

// PidWatcher is the service.Service wrapper around a pkg/pidwatch.Watcher.
type PidWatcher struct {
	name   string
	dir    string
	loop   *core.EventLoop
	logger *slog.Logger
}

// New returns a PidWatcher watching dir and publishing events onto loop.
func New(loop *core.EventLoop, dir string) *PidWatcher {
	return &PidWatcher{name: "pid-watcher", dir: dir, loop: loop}
}

// Name implements service.Service.
func (p *PidWatcher) Name() string { return p.name }

// Run implements service.Service.
func (p *PidWatcher) Run(ctx context.Context, _ nats.InProcessConnProvider) error {
	p.logger = log.GetGlobalLogger().With("service", p.name)
	watcher := pidwatch.New(p.dir, &eventLoopEmitter{loop: p.loop}, p.logger)
	return watcher.Run(ctx)
}

// eventLoopEmitter adapts core.EventLoop.Send to pidwatch.Emitter.
type eventLoopEmitter struct {
	loop *core.EventLoop
}

func (e *eventLoopEmitter) DaemonStarted(ctx context.Context, hci, pid int) {
	_ = e.loop.Send(ctx, core.Event{Kind: core.EventDaemonStarted, HCI: hci, Pid: pid})
}

func (e *eventLoopEmitter) DaemonStopped(ctx context.Context, hci int) {
	_ = e.loop.Send(ctx, core.Event{Kind: core.EventDaemonStopped, HCI: hci})
}
