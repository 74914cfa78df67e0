package monitoring

import (
	"fmt"
	"sync"

	"github.com/sarchlab/simcheck/instrumentation/hooking"
	"github.com/sarchlab/simcheck/scenario"
	"github.com/sarchlab/simcheck/timing"
)

// Step states reported by the monitor.
const (
	StepStateRunning  = "running"
	StepStateFinished = "finished"
	StepStateFailed   = "failed"
)

// StepStatus is what the monitor knows about one step.
type StepStatus struct {
	ID        string  `json:"id"`
	Order     int     `json:"order"`
	StepName  string  `json:"step_name"`
	Name      string  `json:"name,omitempty"`
	Kind      string  `json:"kind"`
	State     string  `json:"state"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Error     string  `json:"error,omitempty"`

	step scenario.Step
}

// stepTracker is a hook that follows the steps of a scenario runner.
type stepTracker struct {
	lock          sync.RWMutex
	timeTeller    timing.TimeTeller
	steps         []*StepStatus
	byStep        map[scenario.Step]*StepStatus
	notifications uint64
	verdict       string
	progress      *ProgressBar
}

func newStepTracker(timeTeller timing.TimeTeller) *stepTracker {
	return &stepTracker{
		timeTeller: timeTeller,
		byStep:     make(map[scenario.Step]*StepStatus),
	}
}

func (t *stepTracker) now() float64 {
	if t.timeTeller == nil {
		return 0
	}

	return float64(t.timeTeller.CurrentTime())
}

// Func updates the step table.
func (t *stepTracker) Func(ctx hooking.HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch ctx.Pos {
	case scenario.HookPosStepStart:
		s := t.statusOf(ctx.Item.(scenario.Step))
		s.State = StepStateRunning
		s.StartTime = t.now()
		t.progress.IncrementInProgress(1)
	case scenario.HookPosStepEnd:
		s := t.statusOf(ctx.Item.(scenario.Step))
		if s.State == StepStateRunning {
			t.progress.MoveInProgressToFinished(1)
		} else {
			t.progress.IncrementFinished(1)
		}

		s.EndTime = t.now()
		s.State = StepStateFinished

		if err, ok := ctx.Detail.(error); ok && err != nil {
			s.State = StepStateFailed
			s.Error = err.Error()
		}
	case scenario.HookPosNotification:
		t.notifications++
	case scenario.HookPosScenarioEnd:
		t.verdict = ctx.Item.(*scenario.Result).Outcome.String()
	}
}

func (t *stepTracker) statusOf(step scenario.Step) *StepStatus {
	s, ok := t.byStep[step]
	if ok {
		return s
	}

	s = &StepStatus{
		ID:        fmt.Sprint(step),
		Order:     step.StepOrder(),
		StepName:  step.StepName(),
		Name:      step.Name(),
		Kind:      fmt.Sprintf("%T", step),
		StartTime: t.now(),
		step:      step,
	}

	t.byStep[step] = s
	t.steps = append(t.steps, s)

	return s
}

// snapshot returns a copy of the step table in the order the steps were
// first seen.
func (t *stepTracker) snapshot() []StepStatus {
	t.lock.RLock()
	defer t.lock.RUnlock()

	steps := make([]StepStatus, 0, len(t.steps))
	for _, s := range t.steps {
		steps = append(steps, *s)
	}

	return steps
}

// find returns the step whose ID, name, or declaring function is name.
func (t *stepTracker) find(name string) (scenario.Step, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	for _, s := range t.steps {
		if s.ID == name || s.Name == name || s.StepName == name {
			return s.step, true
		}
	}

	return nil, false
}

func (t *stepTracker) summary() (verdict string, notifications uint64) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.verdict, t.notifications
}
