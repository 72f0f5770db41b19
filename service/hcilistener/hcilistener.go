// SPDX-License-Identifier: BSD-3-Clause

// Package hcilistener wraps pkg/mgmt.Listener as a service.Service,
// forwarding MGMT controller lifecycle events into a core.EventLoop.
package hcilistener

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/btmgrd/btadapterd/pkg/core"
	"github.com/btmgrd/btadapterd/pkg/log"
	"github.com/btmgrd/btadapterd/pkg/mgmt"
	"github.com/btmgrd/btadapterd/service"
)

var _ service.Service = (*HciListener)(nil)
var _ mgmt.Emitter = (*eventLoopEmitter)(nil)

// HciListener is the service.Service wrapper around a pkg/mgmt.Listener.
type HciListener struct {
	name   string
	cfg    mgmt.ConfigChecker
	loop   *core.EventLoop
	logger *slog.Logger
}

// New returns an HciListener publishing events onto loop, consulting cfg
// for the enablement decisions spec §4.3 requires.
func New(loop *core.EventLoop, cfg mgmt.ConfigChecker) *HciListener {
	return &HciListener{name: "hci-listener", loop: loop, cfg: cfg}
}

// Name implements service.Service.
func (h *HciListener) Name() string { return h.name }

// Run implements service.Service.
func (h *HciListener) Run(ctx context.Context, _ nats.InProcessConnProvider) error {
	h.logger = log.GetGlobalLogger().With("service", h.name)

	listener, err := mgmt.Open(&eventLoopEmitter{loop: h.loop}, h.cfg, h.logger)
	if err != nil {
		return err
	}
	defer listener.Close()

	return listener.Run(ctx)
}

// eventLoopEmitter adapts core.EventLoop.Send to mgmt.Emitter.
type eventLoopEmitter struct {
	loop *core.EventLoop
}

func (e *eventLoopEmitter) PresenceChange(ctx context.Context, hci int, present bool) {
	_ = e.loop.Send(ctx, core.Event{Kind: core.EventPresenceChanged, HCI: hci, Present: present})
}

func (e *eventLoopEmitter) StartAdapterRequest(ctx context.Context, hci int) {
	_ = e.loop.Send(ctx, core.Event{Kind: core.EventStartAdapter, HCI: hci})
}
