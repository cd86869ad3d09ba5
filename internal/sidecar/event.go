package sidecar

import "fmt"

// EventKind tags a sidecar stream event.
type EventKind int

const (
	EventStdout EventKind = iota
	EventStderr
	EventError
	EventTerminated
)

func (k EventKind) String() string {
	switch k {
	case EventStdout:
		return "stdout"
	case EventStderr:
		return "stderr"
	case EventError:
		return "error"
	case EventTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ExitStatus describes how the sidecar process ended.
type ExitStatus struct {
	// Code is the exit code, or -1 if the process was killed by a signal or
	// its status could not be collected.
	Code int
	// Desc is a human-readable summary such as "exit status 1" or
	// "signal: killed".
	Desc string
}

// Event is one unit of sidecar output. Line is set for stdout and stderr,
// Err for errors and Status for termination.
type Event struct {
	Kind   EventKind
	Line   []byte
	Err    error
	Status ExitStatus
}
