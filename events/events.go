// Package events provides the event bus over which the supervisor
// broadcasts child-process lifecycle changes to its subscribers.
package events

// Event is a single lifecycle notification. Source identifies the
// supervised child it refers to ("<path>[<handle>]").
type Event struct {
	Code   EventCode
	Source string
}

// EventCode ...
type EventCode int

// EventCode enum
const (
	None        EventCode = iota // placeholder nil-event
	Started                      // emitted after a child has been exec'd
	ExitSuccess                  // emitted when a child is reaped with 0 exit code
	ExitFailed                   // emitted when a child is reaped with non-0 exit code
	Stopping                     // emitted when Stop has signalled a child
	Stopped                      // emitted when Stop has confirmed termination
	Killed                       // emitted when Stop escalated to SIGKILL
	Error
	Shutdown // fired once to ask all subscribers to halt
)

func (code EventCode) String() string {
	switch code {
	case Started:
		return "Started"
	case ExitSuccess:
		return "ExitSuccess"
	case ExitFailed:
		return "ExitFailed"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	case Killed:
		return "Killed"
	case Error:
		return "Error"
	case Shutdown:
		return "Shutdown"
	}
	return "None"
}

// global events
var (
	GlobalShutdown = Event{Code: Shutdown, Source: "global"}
	NonEvent       = Event{Code: None, Source: ""}
)
