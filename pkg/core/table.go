// SPDX-License-Identifier: BSD-3-Clause

package core

import (
	"context"
	"sort"
	"sync"

	"github.com/btmgrd/btadapterd/pkg/fsm"
)

// AdapterState holds everything StateCore knows about one HCI index. It is
// created lazily on first mention of an index (a presence event or a start
// request) and is never removed for the lifetime of the process.
type AdapterState struct {
	// HCI is the non-negative index this state belongs to. Immutable after
	// creation.
	HCI int

	// Pid is the process identifier of the managed daemon, or 0 when
	// unknown. It is observational only: no StateCore branch reads it to
	// make a decision (see DESIGN.md Open Question 2).
	Pid int

	// Present is true iff the kernel currently reports this HCI index as
	// available.
	Present bool

	// ConfigEnabled is true iff configuration says this adapter should run.
	ConfigEnabled bool

	// RestartCount counts consecutive failed start attempts since the last
	// successful On or hardware-reset attempt. Bounded by
	// RESET_ON_RESTART_COUNT (see statecore.go).
	RestartCount int

	machine *fsm.Machine
}

// State returns the adapter's current lifecycle state.
func (a *AdapterState) State(ctx context.Context) fsm.State {
	return a.machine.Current(ctx)
}

func newAdapterState(hci int) *AdapterState {
	return &AdapterState{
		HCI:     hci,
		machine: newMachine(hci, StateOff),
	}
}

// AdapterTable is an ordered mapping from HCI index to AdapterState. Order
// matters: "lowest numbered present adapter" is a defined fallback for
// default-adapter selection (spec invariant 5).
//
// The EventLoop goroutine is the table's only writer and mutates it without
// locking (spec §5: "internal mutation is uncontested from the EventLoop").
// The mutex exists solely to let external readers take a cheap,
// consistent, read-only snapshot without blocking the event loop for more
// than the time it takes to clone a handful of small structs.
type AdapterTable struct {
	mu    sync.RWMutex
	order []int
	rows  map[int]*AdapterState
}

// NewAdapterTable returns an empty table.
func NewAdapterTable() *AdapterTable {
	return &AdapterTable{
		rows: make(map[int]*AdapterState),
	}
}

// GetOrCreate returns the AdapterState for hci, creating it (in state Off)
// if this is the first time hci has been mentioned.
func (t *AdapterTable) GetOrCreate(hci int) *AdapterState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.rows[hci]; ok {
		return a
	}
	a := newAdapterState(hci)
	t.rows[hci] = a
	t.order = append(t.order, hci)
	sort.Ints(t.order)
	return a
}

// Get returns the AdapterState for hci and whether it is known.
func (t *AdapterTable) Get(hci int) (*AdapterState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.rows[hci]
	return a, ok
}

// LowestPresent returns the lowest-numbered HCI index currently marked
// present, and whether any adapter is present at all.
func (t *AdapterTable) LowestPresent() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, hci := range t.order {
		if t.rows[hci].Present {
			return hci, true
		}
	}
	return 0, false
}

// Snapshot is a point-in-time, read-only copy of one adapter's state,
// safe to hand to external readers (e.g. a status RPC or log line) without
// any risk of them observing a partially applied mutation.
type Snapshot struct {
	HCI           int
	State         fsm.State
	Pid           int
	Present       bool
	ConfigEnabled bool
	RestartCount  int
}

// SnapshotAll returns an ordered, cloned view of every known adapter.
func (t *AdapterTable) SnapshotAll(ctx context.Context) []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Snapshot, 0, len(t.order))
	for _, hci := range t.order {
		a := t.rows[hci]
		out = append(out, Snapshot{
			HCI:           a.HCI,
			State:         a.machine.Current(ctx),
			Pid:           a.Pid,
			Present:       a.Present,
			ConfigEnabled: a.ConfigEnabled,
			RestartCount:  a.RestartCount,
		})
	}
	return out
}
