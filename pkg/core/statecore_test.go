// SPDX-License-Identifier: BSD-3-Clause

package core_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btmgrd/btadapterd/pkg/core"
)

func newTestCore(t *testing.T, resetOnRestartCount int) *core.StateCore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return core.NewStateCore(core.NewAdapterTable(), logger, resetOnRestartCount)
}

// present marks hci present directly, bypassing on_presence_changed's side
// effects, so start_adapter tests exercise only the branch under test.
func present(sc *core.StateCore, hci int) {
	sc.Table().GetOrCreate(hci).Present = true
}

func TestStartAdapter_RequiresPresenceAndFloss(t *testing.T) {
	ctx := context.Background()

	t.Run("no prior presence leaves state Off", func(t *testing.T) {
		sc := newTestCore(t, 2)
		sc.SetFlossEnabled(true)
		res := sc.StartAdapter(ctx, 0)
		require.Equal(t, core.DoNothing, res.Timeout)
		a, _ := sc.Table().Get(0)
		require.Equal(t, core.StateOff, a.State(ctx))
	})

	t.Run("floss disabled leaves state Off", func(t *testing.T) {
		sc := newTestCore(t, 2)
		present(sc, 0)
		sc.SetFlossEnabled(false)
		res := sc.StartAdapter(ctx, 0)
		require.Equal(t, core.DoNothing, res.Timeout)
		a, _ := sc.Table().Get(0)
		require.Equal(t, core.StateOff, a.State(ctx))
	})

	t.Run("present and floss enabled transitions to TurningOn", func(t *testing.T) {
		sc := newTestCore(t, 2)
		present(sc, 0)
		sc.SetFlossEnabled(true)
		res := sc.StartAdapter(ctx, 0)
		require.Equal(t, core.ResetTimer, res.Timeout)
		require.Equal(t, core.StartProcess, res.Process.Kind)
		a, _ := sc.Table().Get(0)
		require.Equal(t, core.StateTurningOn, a.State(ctx))
	})

	t.Run("re-issuing while TurningOn is idempotent but resets the timer", func(t *testing.T) {
		sc := newTestCore(t, 2)
		present(sc, 0)
		sc.SetFlossEnabled(true)
		sc.StartAdapter(ctx, 0)
		res := sc.StartAdapter(ctx, 0)
		require.Equal(t, core.ResetTimer, res.Timeout)
		a, _ := sc.Table().Get(0)
		require.Equal(t, core.StateTurningOn, a.State(ctx))
	})
}

func TestStopAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown HCI is a no-op", func(t *testing.T) {
		sc := newTestCore(t, 2)
		res := sc.StopAdapter(ctx, 7)
		require.Equal(t, core.DoNothing, res.Timeout)
		require.Equal(t, core.NoProcessAction, res.Process.Kind)
	})

	t.Run("On transitions to TurningOff", func(t *testing.T) {
		sc := newTestCore(t, 2)
		sc.OnDaemonStarted(ctx, 12345, 0)
		res := sc.StopAdapter(ctx, 0)
		require.Equal(t, core.ResetTimer, res.Timeout)
		require.Equal(t, core.StopProcess, res.Process.Kind)
		a, _ := sc.Table().Get(0)
		require.Equal(t, core.StateTurningOff, a.State(ctx))
	})

	t.Run("TurningOn transitions directly to Off and cancels the timer", func(t *testing.T) {
		sc := newTestCore(t, 2)
		present(sc, 0)
		sc.SetFlossEnabled(true)
		sc.StartAdapter(ctx, 0)
		res := sc.StopAdapter(ctx, 0)
		require.Equal(t, core.CancelTimer, res.Timeout)
		require.Equal(t, core.StopProcess, res.Process.Kind)
		a, _ := sc.Table().Get(0)
		require.Equal(t, core.StateOff, a.State(ctx))
	})
}

func TestOnDaemonStarted(t *testing.T) {
	ctx := context.Background()
	sc := newTestCore(t, 2)

	res := sc.OnDaemonStarted(ctx, 999, 0)
	require.Equal(t, core.CancelTimer, res.Timeout)

	a, ok := sc.Table().Get(0)
	require.True(t, ok)
	require.Equal(t, core.StateOn, a.State(ctx))
	require.Equal(t, 999, a.Pid)
	require.Equal(t, 0, a.RestartCount)
}

func TestOnDaemonStopped_CrashRecoveryEscalation(t *testing.T) {
	ctx := context.Background()
	const resetOnRestartCount = 2
	sc := newTestCore(t, resetOnRestartCount)
	sc.SetFlossEnabled(true)

	a := sc.Table().GetOrCreate(0)
	a.ConfigEnabled = true
	sc.OnDaemonStarted(ctx, 1, 0)

	// First failure: restart (attempt 1).
	res := sc.OnDaemonStopped(ctx, 0)
	require.Equal(t, core.ResetTimer, res.Timeout)
	require.Equal(t, core.StartProcess, res.Process.Kind)
	require.Equal(t, core.StateTurningOn, a.State(ctx))
	require.Equal(t, 1, a.RestartCount)

	// Simulate the daemon reaching On again, then failing a second time.
	sc.OnDaemonStarted(ctx, 2, 0)
	a.RestartCount = 1
	res = sc.OnDaemonStopped(ctx, 0)
	require.Equal(t, core.ResetTimer, res.Timeout)
	require.Equal(t, core.StartProcess, res.Process.Kind)
	require.Equal(t, 2, a.RestartCount)

	// Third failure hits resetOnRestartCount: escalate to hardware reset.
	sc.OnDaemonStarted(ctx, 3, 0)
	a.RestartCount = resetOnRestartCount
	res = sc.OnDaemonStopped(ctx, 0)
	require.Equal(t, core.CancelTimer, res.Timeout)
	require.Equal(t, core.ResetDevice, res.Process.Kind)
	require.Equal(t, core.StateOff, a.State(ctx))
	require.Equal(t, 0, a.RestartCount)
}

func TestOnDaemonStopped_ExpectedFromTurningOff(t *testing.T) {
	ctx := context.Background()
	sc := newTestCore(t, 2)
	sc.OnDaemonStarted(ctx, 1, 0)
	sc.StopAdapter(ctx, 0)

	res := sc.OnDaemonStopped(ctx, 0)
	require.Equal(t, core.CancelTimer, res.Timeout)
	require.Equal(t, core.NoProcessAction, res.Process.Kind)
	a, _ := sc.Table().Get(0)
	require.Equal(t, core.StateOff, a.State(ctx))
}

func TestOnDaemonStopped_UnexpectedStateForcesOff(t *testing.T) {
	ctx := context.Background()
	sc := newTestCore(t, 2)
	// On, but floss disabled: falls into the "any other state" branch.
	sc.OnDaemonStarted(ctx, 1, 0)
	sc.SetFlossEnabled(false)

	res := sc.OnDaemonStopped(ctx, 0)
	require.Equal(t, core.CancelTimer, res.Timeout)
	a, _ := sc.Table().Get(0)
	require.Equal(t, core.StateOff, a.State(ctx))
}

func TestOnTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("TurningOn with floss disabled stops without further timer", func(t *testing.T) {
		sc := newTestCore(t, 2)
		present(sc, 0)
		sc.SetFlossEnabled(true)
		sc.StartAdapter(ctx, 0)
		sc.SetFlossEnabled(false)

		res := sc.OnTimeout(ctx, 0)
		require.Equal(t, core.DoNothing, res.Timeout)
		require.Equal(t, core.StopProcess, res.Process.Kind)
		a, _ := sc.Table().Get(0)
		require.Equal(t, core.StateOff, a.State(ctx))
	})

	t.Run("TurningOn retries start and increments restart count", func(t *testing.T) {
		sc := newTestCore(t, 2)
		present(sc, 0)
		sc.SetFlossEnabled(true)
		a := sc.Table().GetOrCreate(0)
		a.ConfigEnabled = true
		sc.StartAdapter(ctx, 0)

		res := sc.OnTimeout(ctx, 0)
		require.Equal(t, core.ResetTimer, res.Timeout)
		require.Equal(t, core.StopThenStartProcess, res.Process.Kind)
		require.Equal(t, core.StateTurningOn, a.State(ctx))
		require.Equal(t, 1, a.RestartCount)
	})

	t.Run("TurningOn escalates to reset at the threshold", func(t *testing.T) {
		const resetOnRestartCount = 2
		sc := newTestCore(t, resetOnRestartCount)
		present(sc, 0)
		sc.SetFlossEnabled(true)
		a := sc.Table().GetOrCreate(0)
		a.ConfigEnabled = true
		sc.StartAdapter(ctx, 0)
		a.RestartCount = resetOnRestartCount

		res := sc.OnTimeout(ctx, 0)
		require.Equal(t, core.DoNothing, res.Timeout)
		require.Equal(t, core.ResetDevice, res.Process.Kind)
		require.Equal(t, core.StateOff, a.State(ctx))
		require.Equal(t, 0, a.RestartCount)
	})

	t.Run("TurningOff re-issues stop and keeps the timer armed", func(t *testing.T) {
		sc := newTestCore(t, 2)
		sc.OnDaemonStarted(ctx, 1, 0)
		sc.StopAdapter(ctx, 0)

		res := sc.OnTimeout(ctx, 0)
		require.Equal(t, core.ResetTimer, res.Timeout)
		require.Equal(t, core.StopProcess, res.Process.Kind)
		a, _ := sc.Table().Get(0)
		require.Equal(t, core.StateTurningOff, a.State(ctx))
	})

	t.Run("unknown HCI is a no-op", func(t *testing.T) {
		sc := newTestCore(t, 2)
		res := sc.OnTimeout(ctx, 42)
		require.Equal(t, core.DoNothing, res.Timeout)
	})
}

func TestOnPresenceChanged(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent on repeated true", func(t *testing.T) {
		sc := newTestCore(t, 2)
		sc.SetFlossEnabled(true)

		sc.OnPresenceChanged(ctx, 0, true)
		second := sc.OnPresenceChanged(ctx, 0, true)
		require.False(t, second.DefaultAdapter.Changed, "no duplicate default-adapter change")
		require.Equal(t, core.DoNothing, second.Timeout)
		require.Equal(t, core.NoProcessAction, second.Process.Kind)
	})

	t.Run("newly present with config enabled auto-starts", func(t *testing.T) {
		sc := newTestCore(t, 2)
		sc.SetFlossEnabled(true)
		a := sc.Table().GetOrCreate(0)
		a.ConfigEnabled = true

		res := sc.OnPresenceChanged(ctx, 0, true)
		require.Equal(t, core.ResetTimer, res.Timeout)
		require.Equal(t, core.StartProcess, res.Process.Kind)
		require.Equal(t, core.StateTurningOn, a.State(ctx))
	})

	t.Run("desired adapter preemption on arrival", func(t *testing.T) {
		sc := newTestCore(t, 2)
		sc.SetFlossEnabled(true)
		sc.SetDesiredDefaultAdapter(ctx, 0)
		sc.OnPresenceChanged(ctx, 1, true)
		sc.SetDefaultAdapter(1)

		res := sc.OnPresenceChanged(ctx, 0, true)
		require.True(t, res.DefaultAdapter.Changed)
		require.Equal(t, 0, res.DefaultAdapter.HCI)
	})

	t.Run("losing the default adapter falls back to lowest present", func(t *testing.T) {
		sc := newTestCore(t, 2)
		sc.SetFlossEnabled(true)
		sc.OnPresenceChanged(ctx, 1, true)
		sc.OnPresenceChanged(ctx, 2, true)
		sc.SetDefaultAdapter(1)

		res := sc.OnPresenceChanged(ctx, 1, false)
		require.True(t, res.DefaultAdapter.Changed)
		require.Equal(t, 2, res.DefaultAdapter.HCI)
	})

	t.Run("losing the default adapter with nothing else present does nothing", func(t *testing.T) {
		sc := newTestCore(t, 2)
		sc.SetFlossEnabled(true)
		sc.OnPresenceChanged(ctx, 1, true)
		sc.SetDefaultAdapter(1)

		res := sc.OnPresenceChanged(ctx, 1, false)
		require.False(t, res.DefaultAdapter.Changed)
	})
}

func TestSetDesiredDefaultAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("present and different from current default", func(t *testing.T) {
		sc := newTestCore(t, 2)
		present(sc, 3)

		res := sc.SetDesiredDefaultAdapter(ctx, 3)
		require.True(t, res.DefaultAdapter.Changed)
		require.Equal(t, 3, res.DefaultAdapter.HCI)
		require.Equal(t, 3, sc.DesiredAdapter())
	})

	t.Run("not present leaves default unchanged", func(t *testing.T) {
		sc := newTestCore(t, 2)
		res := sc.SetDesiredDefaultAdapter(ctx, 4)
		require.False(t, res.DefaultAdapter.Changed)
		require.Equal(t, 4, sc.DesiredAdapter())
	})
}

// TestRoundTripStartStop covers spec §8's round-trip laws.
func TestRoundTripStartStop(t *testing.T) {
	ctx := context.Background()
	sc := newTestCore(t, 2)
	present(sc, 0)
	sc.SetFlossEnabled(true)

	sc.StartAdapter(ctx, 0)
	sc.OnDaemonStarted(ctx, 111, 0)
	a, _ := sc.Table().Get(0)
	require.Equal(t, core.StateOn, a.State(ctx))

	sc.StopAdapter(ctx, 0)
	res := sc.OnDaemonStopped(ctx, 0)
	require.Equal(t, core.StateOff, a.State(ctx))
	require.Equal(t, core.CancelTimer, res.Timeout)
}
