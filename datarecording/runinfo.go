package datarecording

import (
	"os"
	"strings"
	"time"
)

// RunInfoTable is the table that holds the properties of a run.
const RunInfoTable = "run_info"

// RunInfo is one property of a run.
type RunInfo struct {
	Property string
	Value    string
}

// RunInfoRecorder records how a run was started and how it ended.
type RunInfoRecorder struct {
	recorder DataRecorder
	entries  []RunInfo
}

// NewRunInfoRecorder creates the run info table in recorder.
func NewRunInfoRecorder(recorder DataRecorder) *RunInfoRecorder {
	recorder.CreateTable(RunInfoTable, RunInfo{})

	return &RunInfoRecorder{recorder: recorder}
}

// Start records the start time, the command line, and the working
// directory.
func (e *RunInfoRecorder) Start() {
	e.Set("Start Time", formatTime(time.Now()))
	e.Set("Command", strings.Join(os.Args, " "))

	if cwd, err := os.Getwd(); err == nil {
		e.Set("Working Directory", cwd)
	}
}

// Set records a property.
func (e *RunInfoRecorder) Set(property, value string) {
	e.entries = append(e.entries, RunInfo{Property: property, Value: value})
}

// End writes every property along with the end time.
func (e *RunInfoRecorder) End() error {
	e.Set("End Time", formatTime(time.Now()))

	for _, entry := range e.entries {
		e.recorder.InsertData(RunInfoTable, entry)
	}

	e.entries = nil

	return e.recorder.Flush()
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000000000")
}
