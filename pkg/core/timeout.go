// SPDX-License-Identifier: BSD-3-Clause

package core

import (
	"sort"
	"sync"
	"time"
)

// DefaultCommandTimeoutDuration is COMMAND_TIMEOUT_DURATION from spec §4.2.
const DefaultCommandTimeoutDuration = 7 * time.Second

// CommandTimeout tracks a per-HCI deadline with a single shared wakeup
// timer, per spec §4.2. Every deadline uses the same fixed duration, so a
// newly set deadline is always later than or equal to any deadline already
// armed; this lets set_next skip re-arming whenever a wakeup is already in
// flight; only expire() needs to pick the next-earliest remaining deadline.
type CommandTimeout struct {
	mu        sync.Mutex
	duration  time.Duration
	deadlines map[int]time.Time
	timer     *time.Timer
	onExpire  func(hci int)
}

// NewCommandTimeout builds a CommandTimeout with the given duration
// (DefaultCommandTimeoutDuration if <= 0). onExpire is invoked once per
// expired HCI index, from the timer's own goroutine; callers are expected
// to enqueue an on_timeout(hci) event rather than do anything blocking
// here.
func NewCommandTimeout(duration time.Duration, onExpire func(hci int)) *CommandTimeout {
	if duration <= 0 {
		duration = DefaultCommandTimeoutDuration
	}
	return &CommandTimeout{
		duration:  duration,
		deadlines: make(map[int]time.Time),
		onExpire:  onExpire,
	}
}

// SetNext arms or refreshes hci's deadline.
func (c *CommandTimeout) SetNext(hci int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deadlines[hci] = time.Now().Add(c.duration)
	if c.timer == nil {
		c.timer = time.AfterFunc(c.duration, c.fire)
	}
}

// Cancel removes hci's deadline, if any. It does not disarm the shared
// timer; the next expire() call will re-arm it to whatever remains, or go
// idle (spec §4.2).
func (c *CommandTimeout) Cancel(hci int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deadlines, hci)
}

// HasEntry reports whether hci currently has an armed deadline. Used by
// tests asserting spec invariant 1/2.
func (c *CommandTimeout) HasEntry(hci int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.deadlines[hci]
	return ok
}

func (c *CommandTimeout) fire() {
	for _, hci := range c.Expire() {
		c.onExpire(hci)
	}
}

// Expire is called when the shared wakeup fires (or directly by tests). It
// returns the sorted list of HCI indices whose deadline has passed,
// removes them, and re-arms the wakeup to the next remaining deadline if
// any, otherwise marks the timer idle.
func (c *CommandTimeout) Expire() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expired []int
	for hci, deadline := range c.deadlines {
		if !deadline.After(now) {
			expired = append(expired, hci)
		}
	}
	for _, hci := range expired {
		delete(c.deadlines, hci)
	}
	sort.Ints(expired)

	c.timer = nil
	if next, ok := c.earliestLocked(); ok {
		d := time.Until(next)
		if d < 0 {
			d = 0
		}
		c.timer = time.AfterFunc(d, c.fire)
	}

	return expired
}

func (c *CommandTimeout) earliestLocked() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, t := range c.deadlines {
		if !found || t.Before(earliest) {
			earliest = t
			found = true
		}
	}
	return earliest, found
}

// Stop disarms the shared timer without clearing deadlines, for shutdown.
func (c *CommandTimeout) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
