// SPDX-License-Identifier: BSD-3-Clause

// Package eventloop wraps a core.EventLoop as a service.Service, so the
// orchestrator's oversight tree supervises the event loop the same way it
// supervises every other component.
package eventloop

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/btmgrd/btadapterd/pkg/core"
	"github.com/btmgrd/btadapterd/service"
)

var _ service.Service = (*EventLoop)(nil)

// EventLoop is the service.Service wrapper around a core.EventLoop.
type EventLoop struct {
	name string
	loop *core.EventLoop
}

// New returns an EventLoop wrapping loop.
func New(loop *core.EventLoop) *EventLoop {
	return &EventLoop{name: "event-loop", loop: loop}
}

// Name implements service.Service.
func (e *EventLoop) Name() string { return e.name }

// Run implements service.Service.
func (e *EventLoop) Run(ctx context.Context, _ nats.InProcessConnProvider) error {
	return e.loop.Run(ctx)
}
