// Package timing provides the discrete event engine that drives simulations.
//
// Submitting events is safe from any goroutine. Events run one at a time on a
// single worker goroutine in (time, secondary, submission) order, so the
// simulation observes single-threaded, reproducible semantics.
package timing

// VTimeInSec defines the time in the simulated space in the unit of second.
type VTimeInSec float64

// Action is the callback carried by an event. A returned error or a panic is
// reported to the engine's failure listeners.
type Action func() error

// An Event is an action that is going to happen in the future.
type Event struct {
	// Time is when the action runs.
	Time VTimeInSec

	// Action is the callback to run. A nil Action is a no-op.
	Action Action

	// Description is a human readable label used in logs and failures.
	Description string

	// IsSecondary events run after all primary events of the same time.
	// Deadline checks use it so that an event scheduled for exactly the
	// deadline is still on time.
	IsSecondary bool

	seq uint64
}

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	// Schedule registers an event to happen in the future.
	Schedule(evt Event)

	// DoNow runs the action at the current time, after every event already
	// queued for the current time.
	DoNow(action Action, description string)

	// DoIn runs the action delay seconds after the current time.
	DoIn(delay VTimeInSec, action Action, description string)

	// DoAt runs the action at the given absolute time.
	DoAt(time VTimeInSec, action Action, description string)
}

// A FailureListener is told about every action that fails.
type FailureListener func(err error)

// Status is the lifecycle state of an engine.
type Status int

// The statuses an engine moves through. An engine never returns to an earlier
// status.
const (
	StatusRunning Status = iota
	StatusStopping
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusStopped:
		return "stopped"
	default:
		panic("unknown status")
	}
}
