package scenario

import (
	"errors"
	"fmt"

	"github.com/sarchlab/simcheck/timing"
)

// Outcome summarizes how a scenario ended.
type Outcome int

// The outcomes. A scenario with failing steps is expected to fail; it passes
// only if it does.
const (
	OutcomePassed Outcome = iota
	OutcomeFailed
	OutcomeExpectedFailure
	OutcomeUnexpectedPass
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeExpectedFailure:
		return "expected_failure"
	case OutcomeUnexpectedPass:
		return "unexpected_pass"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the verdict of a scenario run.
type Result struct {
	Outcome Outcome

	// Err is the failure that ended the scenario. It is a *StepError when
	// the failure can be attributed to a step.
	Err error

	// EndTime is the simulated time the scenario ended at.
	EndTime timing.VTimeInSec

	// FinishedSteps names the unordered steps that completed.
	FinishedSteps []string
}

// Passed tells if the scenario met its expectation: it passed without
// failing steps, or a failing step failed it.
func (r *Result) Passed() bool {
	return r.Outcome == OutcomePassed || r.Outcome == OutcomeExpectedFailure
}

// FailedStep returns the step the failure is attributed to, if any.
func (r *Result) FailedStep() (Step, bool) {
	var se *StepError
	if !errors.As(r.Err, &se) {
		return nil, false
	}

	return se.Step, true
}

func (r *Result) String() string {
	if r.Err == nil {
		return fmt.Sprintf("%s at %.10f", r.Outcome, r.EndTime)
	}

	return fmt.Sprintf("%s at %.10f: %v", r.Outcome, r.EndTime, r.Err)
}
