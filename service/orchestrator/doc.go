// SPDX-License-Identifier: BSD-3-Clause

// Package orchestrator assembles and supervises the Bluetooth adapter
// manager's component services: the notification bus, the MGMT-socket
// listener, the PID-file watcher, and the event loop that drives
// StateCore. It is the entry point every cmd/btadapterd-mgr binary wraps.
//
// # Architecture
//
// The orchestrator follows the same supervision-tree pattern as the rest
// of this reference pack's service orchestrators: an oversight tree with
// a transient restart policy owns each component service, and a
// nursery-managed pair of goroutines runs the tree itself alongside the
// code that adds services to it.
//
//	orc := orchestrator.New(
//		orchestrator.WithProcessManager(procmgr.NewSystemctl("")),
//		orchestrator.WithConfigSource(config.New("/etc/btadapterd.yaml")),
//		orchestrator.WithHciReset(hcireset.New()),
//		orchestrator.WithNotificationSink(sink),
//	)
//	err := orc.Run(ctx, nil)
//
// ProcessManager, ConfigSource, and HciReset are required; Run returns
// ErrMissingConfiguration if any is missing. NotificationSink defaults to
// a no-op sink when not supplied.
package orchestrator
