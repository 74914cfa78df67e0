package tracing

import (
	"sync"

	"github.com/sarchlab/simcheck/datarecording"
	"github.com/sarchlab/simcheck/timing"
	"github.com/tebeka/atexit"
)

// Tables written by the DBTracer.
const (
	TaskTable      = "trace_tasks"
	MilestoneTable = "trace_milestones"
)

type taskTableEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime float64
	EndTime   float64
}

// DBTracer is a tracer that can store tasks into a database.
// DBTracers can connect with different backends so that the tasks can be stored
// in different types of databases.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller timing.TimeTeller
	backend    datarecording.DataRecorder

	startTime, endTime timing.VTimeInSec

	tracingTasks map[string]Task
	terminated   bool
}

// NewDBTracer creates a new DBTracer.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable(TaskTable, taskTableEntry{})
	dataRecorder.CreateTable(MilestoneTable, Milestone{})

	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() {
		_ = t.Terminate()
	})

	return t
}

// SetTimeRange limits the tracer to tasks that overlap [startTime,
// endTime]. A zero bound is open.
func (t *DBTracer) SetTimeRange(startTime, endTime timing.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	startingTaskMustBeValid(task)

	task.StartTime = t.timeTeller.CurrentTime()
	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

func startingTaskMustBeValid(task Task) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.What == "" {
		panic("task what must be set")
	}
}

// EndTask marks the end of a task.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	endTime := t.timeTeller.CurrentTime()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	if t.startTime > 0 && endTime < t.startTime {
		return
	}

	originalTask.EndTime = endTime
	t.writeTask(originalTask)
}

// AddMilestone records a milestone at the current time.
func (t *DBTracer) AddMilestone(milestone Milestone) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.timeTeller.CurrentTime()
	if !t.inRange(now) {
		return
	}

	milestone.Time = float64(now)
	t.backend.InsertData(MilestoneTable, milestone)
}

func (t *DBTracer) inRange(now timing.VTimeInSec) bool {
	if t.startTime > 0 && now < t.startTime {
		return false
	}

	if t.endTime > 0 && now > t.endTime {
		return false
	}

	return true
}

// Terminate ends every unfinished task at the current time and flushes the
// backend. Calling it again does nothing.
func (t *DBTracer) Terminate() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return nil
	}

	t.terminated = true

	now := t.timeTeller.CurrentTime()
	for _, task := range t.tracingTasks {
		task.EndTime = now
		t.writeTask(task)
	}

	t.tracingTasks = make(map[string]Task)

	return t.backend.Flush()
}

func (t *DBTracer) writeTask(task Task) {
	t.backend.InsertData(TaskTable, taskTableEntry{
		ID:        task.ID,
		ParentID:  task.ParentID,
		Kind:      task.Kind,
		What:      task.What,
		Location:  task.Location,
		StartTime: float64(task.StartTime),
		EndTime:   float64(task.EndTime),
	})
}
