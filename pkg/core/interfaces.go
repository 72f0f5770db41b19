// SPDX-License-Identifier: BSD-3-Clause

package core

import "context"

// ProcessManager starts and stops the per-HCI daemon process. Three
// implementations exist in pkg/procmgr (native fork/exec, initctl, and
// systemctl); the EventLoop depends only on this interface.
//
// Start/stop failures are returned to the EventLoop, which logs them; the state machine
// does not depend on the outcome synchronously (spec §4.6) — confirmation
// arrives later via a DaemonStarted/DaemonStopped event from PidWatcher.
type ProcessManager interface {
	Start(ctx context.Context, hci int) error
	Stop(ctx context.Context, hci int) error
}

// HciReset issues a kernel-level HCI device reset, the escalation path
// after RESET_ON_RESTART_COUNT consecutive failed restarts.
type HciReset interface {
	Reset(ctx context.Context, hci int) error
}

// ConfigSource answers the configuration questions StateCore and
// HciListener need. A concrete YAML-backed implementation lives in
// pkg/config.
type ConfigSource interface {
	IsFlossEnabled(ctx context.Context) (bool, error)
	DefaultAdapter(ctx context.Context) (int, error)
	IsHCIEnabled(ctx context.Context, hci int) (bool, error)
	ListPidFiles(ctx context.Context) ([]string, error)
	CheckHCIDeviceExists(ctx context.Context, hci int) (bool, error)
}

// NotificationSink receives the four callbacks the EventLoop emits. A
// NATS-backed implementation lives in pkg/bus; pkg/bus also provides a
// Noop sink for tests and hosts that don't want the bus.
type NotificationSink interface {
	EnabledChange(ctx context.Context, hci int, enabled bool)
	PresenceChange(ctx context.Context, hci int, present bool)
	DefaultAdapterChange(ctx context.Context, hci int)
	ClientDisconnected(ctx context.Context, callbackID string)
}

// AdapterRequester is the surface external requesters use to push
// StartAdapter/StopAdapter/SetDesiredDefaultAdapter onto the EventLoop's
// queue (spec §2). *EventLoop implements it; any out-of-scope client
// surface (spec §1) should depend on this interface rather than EventLoop
// directly.
type AdapterRequester interface {
	RequestStart(ctx context.Context, hci int) error
	RequestStop(ctx context.Context, hci int) error
	RequestSetDesiredDefaultAdapter(ctx context.Context, hci int) error
}

// TimeoutAction is StateCore's instruction to CommandTimeout.
type TimeoutAction int

const (
	// DoNothing leaves CommandTimeout untouched.
	DoNothing TimeoutAction = iota
	// ResetTimer (re-)arms the per-HCI deadline, COMMAND_TIMEOUT_DURATION
	// from now.
	ResetTimer
	// CancelTimer removes the per-HCI deadline, if any.
	CancelTimer
)

// DefaultAdapterAction is StateCore's instruction about the advertised
// default adapter.
type DefaultAdapterAction struct {
	// Changed is false when no default-adapter change is requested.
	Changed bool
	// HCI is only meaningful when Changed is true.
	HCI int
}

// NoDefaultAdapterChange is the zero value, meaning "no change requested".
var NoDefaultAdapterChange = DefaultAdapterAction{}

// NewDefaultAdapter builds a "change default to hci" action.
func NewDefaultAdapter(hci int) DefaultAdapterAction {
	return DefaultAdapterAction{Changed: true, HCI: hci}
}

// ProcessActionKind enumerates the side effect StateCore wants applied to
// ProcessManager or HciReset.
type ProcessActionKind int

const (
	// NoProcessAction requests nothing.
	NoProcessAction ProcessActionKind = iota
	// StartProcess requests ProcessManager.Start(hci).
	StartProcess
	// StopProcess requests ProcessManager.Stop(hci).
	StopProcess
	// StopThenStartProcess requests Stop(hci) followed immediately by
	// Start(hci) — the on_timeout retry-while-TurningOn branch.
	StopThenStartProcess
	// ResetDevice requests HciReset.Reset(hci).
	ResetDevice
)

// ProcessAction is StateCore's instruction about the managed daemon
// process or the hardware itself.
type ProcessAction struct {
	Kind ProcessActionKind
	HCI  int
}

// Result bundles the three independent actions every StateCore operation
// returns, per spec §4.1.
type Result struct {
	Timeout        TimeoutAction
	DefaultAdapter DefaultAdapterAction
	Process        ProcessAction
}

func noProcess(hci int) ProcessAction { return ProcessAction{Kind: NoProcessAction, HCI: hci} }
func startProcess(hci int) ProcessAction {
	return ProcessAction{Kind: StartProcess, HCI: hci}
}
func stopProcess(hci int) ProcessAction { return ProcessAction{Kind: StopProcess, HCI: hci} }
func stopThenStartProcess(hci int) ProcessAction {
	return ProcessAction{Kind: StopThenStartProcess, HCI: hci}
}
func resetDevice(hci int) ProcessAction { return ProcessAction{Kind: ResetDevice, HCI: hci} }
