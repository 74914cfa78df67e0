package tracing

import "github.com/sarchlab/simcheck/timing"

// A Task is something that takes simulated time, such as a scenario step or
// an engine event.
type Task struct {
	ID        string            `json:"id"`
	ParentID  string            `json:"parent_id"`
	Kind      string            `json:"kind"`
	What      string            `json:"what"`
	Location  string            `json:"location"`
	StartTime timing.VTimeInSec `json:"start_time"`
	EndTime   timing.VTimeInSec `json:"end_time"`
	Detail    any               `json:"-"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// TaskKindIs returns a filter that accepts the tasks of the given kind.
func TaskKindIs(kind string) TaskFilter {
	return func(t Task) bool { return t.Kind == kind }
}
