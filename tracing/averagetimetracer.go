package tracing

import (
	"sync"

	"github.com/sarchlab/simcheck/timing"
)

// AverageTimeTracer can collect the average time of executing a certain type
// of task.
type AverageTimeTracer struct {
	timeTeller    timing.TimeTeller
	filter        TaskFilter
	lock          sync.Mutex
	averageTime   timing.VTimeInSec
	inflightTasks map[string]Task
	taskCount     uint64
}

// NewAverageTimeTracer creates a new AverageTimeTracer
func NewAverageTimeTracer(
	timeTeller timing.TimeTeller,
	filter TaskFilter,
) *AverageTimeTracer {
	return &AverageTimeTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]Task),
	}
}

// AverageTime returns the average time spent on the traced tasks.
func (t *AverageTimeTracer) AverageTime() timing.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageTime
}

// TotalCount returns the total number of tasks.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// StartTask records the task start time
func (t *AverageTimeTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[task.ID] = task
	t.lock.Unlock()
}

// EndTask records the end of the task
func (t *AverageTimeTracer) EndTask(task Task) {
	task.EndTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	taskTime := task.EndTime - originalTask.StartTime
	t.averageTime = timing.VTimeInSec(
		(float64(t.averageTime)*float64(t.taskCount) + float64(taskTime)) /
			float64(t.taskCount+1))
	delete(t.inflightTasks, task.ID)
	t.taskCount++
}

// AddMilestone does nothing.
func (t *AverageTimeTracer) AddMilestone(_ Milestone) {}
