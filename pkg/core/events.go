// SPDX-License-Identifier: BSD-3-Clause

package core

// EventKind identifies which StateCore operation an Event should drive.
type EventKind int

const (
	// EventStartAdapter requests start_adapter(HCI).
	EventStartAdapter EventKind = iota
	// EventStopAdapter requests stop_adapter(HCI).
	EventStopAdapter
	// EventDaemonStarted requests on_daemon_started(Pid, HCI).
	EventDaemonStarted
	// EventDaemonStopped requests on_daemon_stopped(HCI).
	EventDaemonStopped
	// EventTimeout requests on_timeout(HCI).
	EventTimeout
	// EventPresenceChanged requests on_presence_changed(HCI, Present).
	EventPresenceChanged
	// EventSetDesiredDefaultAdapter requests set_desired_default_adapter(HCI).
	EventSetDesiredDefaultAdapter
)

// String renders the event kind for logging.
func (k EventKind) String() string {
	switch k {
	case EventStartAdapter:
		return "start_adapter"
	case EventStopAdapter:
		return "stop_adapter"
	case EventDaemonStarted:
		return "daemon_started"
	case EventDaemonStopped:
		return "daemon_stopped"
	case EventTimeout:
		return "timeout"
	case EventPresenceChanged:
		return "presence_changed"
	case EventSetDesiredDefaultAdapter:
		return "set_desired_default_adapter"
	default:
		return "unknown"
	}
}

// Event is the single type flowing through the EventLoop's queue. Not
// every field is meaningful for every Kind; see the EventKind constants.
type Event struct {
	Kind    EventKind
	HCI     int
	Pid     int
	Present bool
}
