// SPDX-License-Identifier: BSD-3-Clause

package core

import "errors"

var (
	// ErrUnknownHCI indicates an operation referenced an HCI index the
	// table has never seen and the operation does not create one (e.g.
	// stop_adapter on an unknown index — spec §4.1.2).
	ErrUnknownHCI = errors.New("unknown HCI index")
	// ErrQueueBackpressure indicates a bounded-send into the event queue
	// exceeded its timeout. Spec §4.5/§9 treats this as fatal.
	ErrQueueBackpressure = errors.New("event queue send exceeded timeout")
	// ErrEventLoopClosed indicates an event was sent after the event loop
	// had already stopped consuming.
	ErrEventLoopClosed = errors.New("event loop is closed")
	// ErrInvalidEvent indicates an Event value with no recognized Kind.
	ErrInvalidEvent = errors.New("invalid event")
)
