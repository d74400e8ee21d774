// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// EventKind represents what the simulated kernel did.
type EventKind int

const (
	EventPolicy EventKind = iota
	EventParams
	EventPrepare
	EventSleep
	EventRelease
	EventNPRequest
	EventNPExit
	EventFault
)

// Event is emitted on every kernel entry point that changes state.
type Event struct {
	Time   time.Time
	Tick   int64
	Kind   EventKind
	TaskID int
	Job    uint32
	Detail string
}

func (k EventKind) String() string {
	switch k {
	case EventPolicy:
		return "Policy"
	case EventParams:
		return "Params"
	case EventPrepare:
		return "Prepare"
	case EventSleep:
		return "Sleep"
	case EventRelease:
		return "Release"
	case EventNPRequest:
		return "NP-Request"
	case EventNPExit:
		return "NP-Exit"
	case EventFault:
		return "Fault"
	default:
		return "Unknown"
	}
}
