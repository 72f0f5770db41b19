// SPDX-License-Identifier: BSD-3-Clause

package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// DefaultResetOnRestartCount is RESET_ON_RESTART_COUNT from spec §3
// invariant 3: the number of consecutive failed restarts tolerated before
// StateCore escalates to a hardware reset.
const DefaultResetOnRestartCount = 2

// StateCore is the pure transition function described in spec §4.1. It
// owns no process state itself beyond the AdapterTable and the three
// global scalars (floss_enabled, default_adapter, desired_adapter); every
// operation consults and mutates those, then returns the
// (TimeoutAction, DefaultAdapterAction, ProcessAction) tuple the EventLoop
// must apply.
type StateCore struct {
	table  *AdapterTable
	logger *slog.Logger
	cfg    ConfigSource

	resetOnRestartCount int

	flossEnabled   atomic.Bool
	defaultAdapter atomic.Int32
	desiredAdapter atomic.Int32
}

// NewStateCore builds a StateCore over table. resetOnRestartCount of 0
// falls back to DefaultResetOnRestartCount.
func NewStateCore(table *AdapterTable, logger *slog.Logger, resetOnRestartCount int) *StateCore {
	if resetOnRestartCount <= 0 {
		resetOnRestartCount = DefaultResetOnRestartCount
	}
	return &StateCore{
		table:               table,
		logger:              logger,
		resetOnRestartCount: resetOnRestartCount,
	}
}

// Table returns the underlying AdapterTable, e.g. for snapshot reads.
func (sc *StateCore) Table() *AdapterTable { return sc.table }

// FlossEnabled is an atomically-readable scalar (spec §5); any goroutine
// may call it.
func (sc *StateCore) FlossEnabled() bool { return sc.flossEnabled.Load() }

// SetFlossEnabled is written only from the EventLoop.
func (sc *StateCore) SetFlossEnabled(v bool) { sc.flossEnabled.Store(v) }

// DefaultAdapter is an atomically-readable scalar (spec §5); any goroutine
// may call it.
func (sc *StateCore) DefaultAdapter() int { return int(sc.defaultAdapter.Load()) }

// SetDefaultAdapter is written only from the EventLoop, in response to a
// DefaultAdapterAction returned by one of the operations below.
func (sc *StateCore) SetDefaultAdapter(hci int) { sc.defaultAdapter.Store(int32(hci)) }

// DesiredAdapter returns the last HCI index requested as default.
func (sc *StateCore) DesiredAdapter() int { return int(sc.desiredAdapter.Load()) }

// Seed primes StateCore's global scalars from cfg at startup, per spec
// §1's "reading a per-adapter 'enabled' flag and a 'default adapter'
// selection from configuration at startup". It also retains cfg so that
// every AdapterState created from here on (spec §3: "created lazily on
// first mention of an HCI index") has its ConfigEnabled flag populated
// from config the moment it is first mentioned, rather than defaulting to
// false forever. Call once, before the EventLoop starts consuming events.
func (sc *StateCore) Seed(ctx context.Context, cfg ConfigSource) error {
	sc.cfg = cfg

	floss, err := cfg.IsFlossEnabled(ctx)
	if err != nil {
		return fmt.Errorf("statecore: seed is_floss_enabled: %w", err)
	}
	sc.SetFlossEnabled(floss)

	def, err := cfg.DefaultAdapter(ctx)
	if err != nil {
		return fmt.Errorf("statecore: seed default_adapter: %w", err)
	}
	sc.desiredAdapter.Store(int32(def))
	sc.SetDefaultAdapter(def)

	return nil
}

// getOrCreate wraps AdapterTable.GetOrCreate, seeding ConfigEnabled from
// cfg the first time hci is mentioned (spec §3 lazy-creation rule). A
// config lookup failure is logged and leaves ConfigEnabled at its
// zero-value false, matching the rest of this module's "benign, log and
// carry on" error policy (spec §7) for config queries made after startup.
func (sc *StateCore) getOrCreate(ctx context.Context, hci int) *AdapterState {
	if _, ok := sc.table.Get(hci); ok {
		return sc.table.GetOrCreate(hci)
	}

	a := sc.table.GetOrCreate(hci)
	if sc.cfg == nil {
		return a
	}
	enabled, err := sc.cfg.IsHCIEnabled(ctx, hci)
	if err != nil {
		sc.logger.WarnContext(ctx, "getOrCreate: is_hci_enabled failed", "hci", hci, "error", err)
		return a
	}
	a.ConfigEnabled = enabled
	return a
}

// StartAdapter implements spec §4.1.1.
func (sc *StateCore) StartAdapter(ctx context.Context, hci int) Result {
	a := sc.getOrCreate(ctx, hci)
	cur := a.State(ctx)

	if (cur == StateOff || cur == StateTurningOn) && a.Present && sc.FlossEnabled() {
		if _, err := a.machine.Fire(ctx, triggerStartRequested); err != nil {
			sc.logger.WarnContext(ctx, "start_adapter: transition rejected", "hci", hci, "error", err)
			return Result{Timeout: DoNothing, Process: noProcess(hci)}
		}
		return Result{Timeout: ResetTimer, Process: startProcess(hci)}
	}
	return Result{Timeout: DoNothing, Process: noProcess(hci)}
}

// StopAdapter implements spec §4.1.2.
func (sc *StateCore) StopAdapter(ctx context.Context, hci int) Result {
	a, ok := sc.table.Get(hci)
	if !ok {
		sc.logger.WarnContext(ctx, "stop_adapter: unknown HCI index", "hci", hci)
		return Result{Timeout: DoNothing, Process: noProcess(hci)}
	}

	switch a.State(ctx) {
	case StateOn:
		if _, err := a.machine.Fire(ctx, triggerStopToTurningOff); err != nil {
			sc.logger.WarnContext(ctx, "stop_adapter: transition rejected", "hci", hci, "error", err)
			return Result{Timeout: DoNothing, Process: noProcess(hci)}
		}
		return Result{Timeout: ResetTimer, Process: stopProcess(hci)}
	case StateTurningOn:
		if _, err := a.machine.Fire(ctx, triggerStopToOff); err != nil {
			sc.logger.WarnContext(ctx, "stop_adapter: transition rejected", "hci", hci, "error", err)
			return Result{Timeout: DoNothing, Process: noProcess(hci)}
		}
		return Result{Timeout: CancelTimer, Process: stopProcess(hci)}
	default:
		return Result{Timeout: DoNothing, Process: noProcess(hci)}
	}
}

// OnDaemonStarted implements spec §4.1.3.
func (sc *StateCore) OnDaemonStarted(ctx context.Context, pid, hci int) Result {
	a := sc.getOrCreate(ctx, hci)
	if _, err := a.machine.Fire(ctx, triggerDaemonStarted); err != nil {
		sc.logger.WarnContext(ctx, "on_daemon_started: transition rejected", "hci", hci, "error", err)
	}
	a.Pid = pid
	a.RestartCount = 0
	return Result{Timeout: CancelTimer, Process: noProcess(hci)}
}

// OnDaemonStopped implements spec §4.1.4.
func (sc *StateCore) OnDaemonStopped(ctx context.Context, hci int) Result {
	a := sc.getOrCreate(ctx, hci)

	switch {
	case a.State(ctx) == StateTurningOff:
		if _, err := a.machine.Fire(ctx, triggerDaemonStoppedExpect); err != nil {
			sc.logger.WarnContext(ctx, "on_daemon_stopped: transition rejected", "hci", hci, "error", err)
		}
		return Result{Timeout: CancelTimer, Process: noProcess(hci)}

	case a.State(ctx) == StateOn && sc.FlossEnabled() && a.ConfigEnabled:
		if a.RestartCount >= sc.resetOnRestartCount {
			if _, err := a.machine.Fire(ctx, triggerDaemonStoppedReset); err != nil {
				sc.logger.WarnContext(ctx, "on_daemon_stopped: transition rejected", "hci", hci, "error", err)
			}
			a.RestartCount = 0
			return Result{Timeout: CancelTimer, Process: resetDevice(hci)}
		}
		if _, err := a.machine.Fire(ctx, triggerDaemonStoppedRestart); err != nil {
			sc.logger.WarnContext(ctx, "on_daemon_stopped: transition rejected", "hci", hci, "error", err)
		}
		a.RestartCount++
		return Result{Timeout: ResetTimer, Process: startProcess(hci)}

	default:
		sc.logger.WarnContext(ctx, "on_daemon_stopped: unexpected state, forcing off", "hci", hci, "state", a.State(ctx))
		if _, err := a.machine.Fire(ctx, triggerDaemonStoppedForceOff); err != nil {
			sc.logger.WarnContext(ctx, "on_daemon_stopped: transition rejected", "hci", hci, "error", err)
		}
		return Result{Timeout: CancelTimer, Process: noProcess(hci)}
	}
}

// OnTimeout implements spec §4.1.5.
func (sc *StateCore) OnTimeout(ctx context.Context, hci int) Result {
	a, ok := sc.table.Get(hci)
	if !ok {
		return Result{Timeout: DoNothing, Process: noProcess(hci)}
	}

	switch cur := a.State(ctx); {
	case cur == StateTurningOn && !sc.FlossEnabled():
		if _, err := a.machine.Fire(ctx, triggerTimeoutStopDisabled); err != nil {
			sc.logger.WarnContext(ctx, "on_timeout: transition rejected", "hci", hci, "error", err)
		}
		return Result{Timeout: DoNothing, Process: stopProcess(hci)}

	case cur == StateTurningOn && a.ConfigEnabled:
		if a.RestartCount >= sc.resetOnRestartCount {
			if _, err := a.machine.Fire(ctx, triggerTimeoutReset); err != nil {
				sc.logger.WarnContext(ctx, "on_timeout: transition rejected", "hci", hci, "error", err)
			}
			a.RestartCount = 0
			return Result{Timeout: DoNothing, Process: resetDevice(hci)}
		}
		if _, err := a.machine.Fire(ctx, triggerTimeoutRetryStart); err != nil {
			sc.logger.WarnContext(ctx, "on_timeout: transition rejected", "hci", hci, "error", err)
		}
		a.RestartCount++
		return Result{Timeout: ResetTimer, Process: stopThenStartProcess(hci)}

	case cur == StateTurningOff:
		if _, err := a.machine.Fire(ctx, triggerTimeoutRetryStop); err != nil {
			sc.logger.WarnContext(ctx, "on_timeout: transition rejected", "hci", hci, "error", err)
		}
		return Result{Timeout: ResetTimer, Process: stopProcess(hci)}

	default:
		return Result{Timeout: DoNothing, Process: noProcess(hci)}
	}
}

// OnPresenceChanged implements spec §4.1.6.
func (sc *StateCore) OnPresenceChanged(ctx context.Context, hci int, present bool) Result {
	a := sc.getOrCreate(ctx, hci)

	if a.Present == present {
		return Result{Timeout: DoNothing, Process: noProcess(hci)}
	}
	a.Present = present

	result := Result{Timeout: DoNothing, Process: noProcess(hci)}

	if present {
		if a.State(ctx) == StateOff && a.ConfigEnabled && sc.FlossEnabled() {
			a.RestartCount = 0
			sub := sc.StartAdapter(ctx, hci)
			result.Timeout = sub.Timeout
			result.Process = sub.Process
		}
		if hci == sc.DesiredAdapter() && hci != sc.DefaultAdapter() {
			result.DefaultAdapter = NewDefaultAdapter(sc.DesiredAdapter())
		}
	} else if hci == sc.DefaultAdapter() {
		if lowest, ok := sc.table.LowestPresent(); ok {
			result.DefaultAdapter = NewDefaultAdapter(lowest)
		}
	}

	return result
}

// SetDesiredDefaultAdapter implements spec §4.1.7.
func (sc *StateCore) SetDesiredDefaultAdapter(ctx context.Context, hci int) Result {
	sc.desiredAdapter.Store(int32(hci))

	a, ok := sc.table.Get(hci)
	if ok && a.Present && hci != sc.DefaultAdapter() {
		return Result{Timeout: DoNothing, Process: noProcess(hci), DefaultAdapter: NewDefaultAdapter(hci)}
	}
	return Result{Timeout: DoNothing, Process: noProcess(hci)}
}
