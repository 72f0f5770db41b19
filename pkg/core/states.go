// SPDX-License-Identifier: BSD-3-Clause

package core

import (
	"strconv"

	"github.com/btmgrd/btadapterd/pkg/fsm"
)

// The four lifecycle states an adapter can be in.
const (
	StateOff        fsm.State = "off"
	StateTurningOn  fsm.State = "turning_on"
	StateOn         fsm.State = "on"
	StateTurningOff fsm.State = "turning_off"
)

// Triggers, one per StateCore branch that performs a transition. Naming
// them after the branch rather than just the destination state keeps
// tracing output (fsm.Machine tags each Fire span with the trigger name)
// legible when diagnosing a misbehaving adapter.
const (
	triggerStartRequested       fsm.Trigger = "start_requested"
	triggerStopToOff            fsm.Trigger = "stop_to_off"
	triggerStopToTurningOff     fsm.Trigger = "stop_to_turning_off"
	triggerDaemonStarted        fsm.Trigger = "daemon_started"
	triggerDaemonStoppedExpect  fsm.Trigger = "daemon_stopped_expected"
	triggerDaemonStoppedRestart fsm.Trigger = "daemon_stopped_restart"
	triggerDaemonStoppedReset   fsm.Trigger = "daemon_stopped_reset"
	triggerDaemonStoppedForceOff fsm.Trigger = "daemon_stopped_force_off"
	triggerTimeoutStopDisabled  fsm.Trigger = "timeout_stop_disabled"
	triggerTimeoutRetryStart    fsm.Trigger = "timeout_retry_start"
	triggerTimeoutReset         fsm.Trigger = "timeout_reset"
	triggerTimeoutRetryStop     fsm.Trigger = "timeout_retry_stop"
)

// transitionTable is shared by every adapter's fsm.Machine. It encodes
// every edge any StateCore branch can request; StateCore itself decides,
// from AdapterState and global flags, which trigger (if any) to fire.
var transitionTable = []fsm.Transition{
	{From: StateOff, Trigger: triggerStartRequested, To: StateTurningOn},
	{From: StateTurningOn, Trigger: triggerStartRequested, To: StateTurningOn, Reentry: true},

	{From: StateTurningOn, Trigger: triggerStopToOff, To: StateOff},
	{From: StateOn, Trigger: triggerStopToTurningOff, To: StateTurningOff},

	{From: StateOff, Trigger: triggerDaemonStarted, To: StateOn},
	{From: StateTurningOn, Trigger: triggerDaemonStarted, To: StateOn},
	{From: StateOn, Trigger: triggerDaemonStarted, To: StateOn, Reentry: true},
	{From: StateTurningOff, Trigger: triggerDaemonStarted, To: StateOn},

	{From: StateTurningOff, Trigger: triggerDaemonStoppedExpect, To: StateOff},
	{From: StateOn, Trigger: triggerDaemonStoppedRestart, To: StateTurningOn},
	{From: StateOn, Trigger: triggerDaemonStoppedReset, To: StateOff},
	{From: StateOff, Trigger: triggerDaemonStoppedForceOff, To: StateOff, Reentry: true},
	{From: StateTurningOn, Trigger: triggerDaemonStoppedForceOff, To: StateOff},
	{From: StateOn, Trigger: triggerDaemonStoppedForceOff, To: StateOff},

	{From: StateTurningOn, Trigger: triggerTimeoutStopDisabled, To: StateOff},
	{From: StateTurningOn, Trigger: triggerTimeoutRetryStart, To: StateTurningOn, Reentry: true},
	{From: StateTurningOn, Trigger: triggerTimeoutReset, To: StateOff},
	{From: StateTurningOff, Trigger: triggerTimeoutRetryStop, To: StateTurningOff, Reentry: true},
}

func newMachine(hci int, initial fsm.State) *fsm.Machine {
	if initial == "" {
		initial = StateOff
	}
	return fsm.New(adapterMachineName(hci), initial, transitionTable)
}

func adapterMachineName(hci int) string {
	return "adapter-" + strconv.Itoa(hci)
}
