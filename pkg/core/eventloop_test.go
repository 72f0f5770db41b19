// SPDX-License-Identifier: BSD-3-Clause

package core_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btmgrd/btadapterd/pkg/core"
)

type fakeProcessManager struct {
	mu      sync.Mutex
	started []int
	stopped []int
}

func (f *fakeProcessManager) Start(_ context.Context, hci int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, hci)
	return nil
}

func (f *fakeProcessManager) Stop(_ context.Context, hci int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, hci)
	return nil
}

func (f *fakeProcessManager) startedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

type fakeHciReset struct {
	mu    sync.Mutex
	resets []int
}

func (f *fakeHciReset) Reset(_ context.Context, hci int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, hci)
	return nil
}

func (f *fakeHciReset) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resets)
}

type notification struct {
	kind string
	hci  int
	flag bool
}

type fakeSink struct {
	mu   sync.Mutex
	got  []notification
}

func (f *fakeSink) EnabledChange(_ context.Context, hci int, enabled bool) {
	f.record(notification{kind: "enabled", hci: hci, flag: enabled})
}

func (f *fakeSink) PresenceChange(_ context.Context, hci int, present bool) {
	f.record(notification{kind: "presence", hci: hci, flag: present})
}

func (f *fakeSink) DefaultAdapterChange(_ context.Context, hci int) {
	f.record(notification{kind: "default", hci: hci})
}

func (f *fakeSink) ClientDisconnected(context.Context, string) {}

func (f *fakeSink) record(n notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, n)
}

func (f *fakeSink) snapshot() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notification, len(f.got))
	copy(out, f.got)
	return out
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// TestEventLoop_ColdStartAdapterArrives is scenario 1 from spec §8.
func TestEventLoop_ColdStartAdapterArrives(t *testing.T) {
	table := core.NewAdapterTable()
	sc := core.NewStateCore(table, newTestLogger(), 2)
	sc.SetFlossEnabled(true)
	a := table.GetOrCreate(0)
	a.ConfigEnabled = true

	pm := &fakeProcessManager{}
	reset := &fakeHciReset{}
	sink := &fakeSink{}
	loop := core.NewEventLoop(sc, pm, reset, sink, newTestLogger())
	defer loop.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	require.NoError(t, loop.Send(ctx, core.Event{Kind: core.EventPresenceChanged, HCI: 0, Present: true}))
	waitFor(t, time.Second, func() bool { return pm.startedCount() == 1 })

	require.NoError(t, loop.Send(ctx, core.Event{Kind: core.EventDaemonStarted, HCI: 0, Pid: 12345}))

	waitFor(t, time.Second, func() bool {
		snap, ok := table.Get(0)
		return ok && snap.State(ctx) == core.StateOn
	})

	waitFor(t, time.Second, func() bool {
		var sawPresence, sawEnabled bool
		for _, n := range sink.snapshot() {
			if n.kind == "presence" && n.hci == 0 && n.flag {
				sawPresence = true
			}
			if n.kind == "enabled" && n.hci == 0 && n.flag {
				sawEnabled = true
			}
		}
		return sawPresence && sawEnabled
	})
}

// TestEventLoop_EscalatesToResetAfterRepeatedFailures drives R=2
// consecutive failures through the loop: a crash from On restarts the
// daemon (restart count 1), the first start timeout retries it (count 2),
// and the second start timeout escalates to a hardware reset. A successful
// DaemonStarted resets the count, so none is sent between the failures.
func TestEventLoop_EscalatesToResetAfterRepeatedFailures(t *testing.T) {
	table := core.NewAdapterTable()
	sc := core.NewStateCore(table, newTestLogger(), 2)
	sc.SetFlossEnabled(true)
	a := table.GetOrCreate(0)
	a.ConfigEnabled = true

	pm := &fakeProcessManager{}
	reset := &fakeHciReset{}
	sink := &fakeSink{}
	loop := core.NewEventLoop(sc, pm, reset, sink, newTestLogger())
	defer loop.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	require.NoError(t, loop.Send(ctx, core.Event{Kind: core.EventDaemonStarted, HCI: 0, Pid: 1}))
	waitFor(t, time.Second, func() bool { return a.State(ctx) == core.StateOn })

	require.NoError(t, loop.Send(ctx, core.Event{Kind: core.EventDaemonStopped, HCI: 0}))
	waitFor(t, time.Second, func() bool { return pm.startedCount() == 1 })
	require.Equal(t, core.StateTurningOn, a.State(ctx))

	require.NoError(t, loop.Send(ctx, core.Event{Kind: core.EventTimeout, HCI: 0}))
	waitFor(t, time.Second, func() bool { return pm.startedCount() == 2 })

	require.NoError(t, loop.Send(ctx, core.Event{Kind: core.EventTimeout, HCI: 0}))
	waitFor(t, time.Second, func() bool { return reset.count() == 1 })
	require.Equal(t, core.StateOff, a.State(ctx))
	require.Equal(t, 0, a.RestartCount)
}

// TestEventLoop_SendTimeoutIsFatal covers spec §4.5/§9: a send that cannot
// fit in the bounded queue within SendTimeout is a fatal programming
// error.
func TestEventLoop_SendTimeoutIsFatal(t *testing.T) {
	table := core.NewAdapterTable()
	sc := core.NewStateCore(table, newTestLogger(), 2)
	loop := core.NewEventLoop(sc, &fakeProcessManager{}, &fakeHciReset{}, &fakeSink{}, newTestLogger())

	// Never call Run: the queue fills up and every further send blocks. A
	// send whose context ends first returns the context's error; a send
	// with no deadline waits out the 3s SendTimeout and panics.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < core.EventQueueCapacity; i++ {
		require.NoError(t, loop.Send(context.Background(), core.Event{Kind: core.EventStopAdapter, HCI: i}))
	}

	err := loop.Send(ctx, core.Event{Kind: core.EventStopAdapter, HCI: 999})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.PanicsWithError(t, "event queue send exceeded timeout: event kind stop_adapter for hci 1000", func() {
		_ = loop.Send(context.Background(), core.Event{Kind: core.EventStopAdapter, HCI: 1000})
	})
}
