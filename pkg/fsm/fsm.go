// SPDX-License-Identifier: BSD-3-Clause

// Package fsm provides a thread-safe, per-adapter finite state machine built
// on top of github.com/qmuntal/stateless. It is a deliberately thin wrapper:
// callers supply the full transition table up front and decide externally
// which trigger to fire and when: the machine itself only enforces that a
// requested transition is legal from the current state and reports the
// resulting state back.
package fsm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// State identifies one of the machine's legal states.
type State string

// Trigger identifies a requested transition.
type Trigger string

// Transition describes one legal edge in the machine's transition table.
type Transition struct {
	From    State
	Trigger Trigger
	To      State
	// Reentry permits firing Trigger again while already in To, re-running
	// entry/exit callbacks. Needed for operations the spec describes as
	// "intentionally idempotent but timer-refreshing" (e.g. re-issuing
	// start_adapter while TurningOn).
	Reentry bool
}

// FireTimeout bounds how long a single Fire call may block on the
// underlying stateless.StateMachine before it is treated as stuck.
const FireTimeout = 5 * time.Second

// Machine is a single adapter's state machine.
type Machine struct {
	mu      sync.Mutex
	machine *stateless.StateMachine
	tracer  trace.Tracer
	name    string
}

// New builds a Machine starting in initial, configured with the given
// transition table. name is used only for tracing attribution.
func New(name string, initial State, transitions []Transition) *Machine {
	sm := stateless.NewStateMachine(initial)

	byFrom := make(map[State][]Transition)
	for _, t := range transitions {
		byFrom[t.From] = append(byFrom[t.From], t)
	}
	for from, ts := range byFrom {
		cfg := sm.Configure(from)
		for _, t := range ts {
			if t.Reentry && t.From == t.To {
				cfg.PermitReentry(t.Trigger)
				continue
			}
			cfg.Permit(t.Trigger, t.To)
		}
	}

	return &Machine{
		machine: sm,
		tracer:  otel.Tracer("btadapterd/fsm"),
		name:    name,
	}
}

// Fire attempts the given trigger. It returns ErrIllegalTransition if the
// trigger is not permitted from the current state, ErrFireTimeout if the
// underlying machine does not settle within FireTimeout, or the resulting
// state otherwise.
func (m *Machine) Fire(ctx context.Context, trigger Trigger) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := m.tracer.Start(ctx, "fsm.Fire", trace.WithAttributes(
		attribute.String("fsm.name", m.name),
		attribute.String("fsm.trigger", string(trigger)),
	))
	defer span.End()

	if ok, _ := m.machine.CanFire(trigger); !ok {
		cur, _ := m.machine.State(ctx)
		err := fmt.Errorf("%w: trigger %q not permitted from state %v", ErrIllegalTransition, trigger, cur)
		span.RecordError(err)
		return State(fmt.Sprintf("%v", cur)), err
	}

	fireCtx, cancel := context.WithTimeout(ctx, FireTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.machine.FireCtx(fireCtx, trigger)
	}()

	select {
	case err := <-done:
		if err != nil {
			span.RecordError(err)
			return m.currentLocked(ctx), fmt.Errorf("%w: %w", ErrTransitionFailed, err)
		}
	case <-fireCtx.Done():
		span.RecordError(ErrFireTimeout)
		return m.currentLocked(ctx), ErrFireTimeout
	}

	cur := m.currentLocked(ctx)
	span.SetAttributes(attribute.String("fsm.new_state", string(cur)))
	return cur, nil
}

// Current returns the machine's current state without attempting any
// transition.
func (m *Machine) Current(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(ctx)
}

func (m *Machine) currentLocked(ctx context.Context) State {
	s, err := m.machine.State(ctx)
	if err != nil {
		return ""
	}
	return State(fmt.Sprintf("%v", s))
}

// CanFire reports whether trigger is legal from the current state.
func (m *Machine) CanFire(trigger Trigger) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, _ := m.machine.CanFire(trigger)
	return ok
}
