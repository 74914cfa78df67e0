package tracing

// Milestone kinds recorded by the trace hook.
const (
	MilestoneKindNotification = "notification"
	MilestoneKindFailure      = "failure"
	MilestoneKindVerdict      = "verdict"
)

// Milestone is an instant in a run, such as a notification arriving or a
// step failing. TaskID is empty when the milestone belongs to no task.
type Milestone struct {
	ID       string  `json:"id"`
	TaskID   string  `json:"task_id"`
	Time     float64 `json:"time"`
	Kind     string  `json:"kind"`
	What     string  `json:"what"`
	Location string  `json:"location"`
}
