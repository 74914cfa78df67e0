package scenario

import (
	"errors"
	"fmt"
)

// Configuration misuse. These are programmer errors in the scenario script.
var (
	ErrFutureNotPopulated     = errors.New("scenario: step future has not been populated")
	ErrFutureAlreadyPopulated = errors.New("scenario: step future has already been populated")
	ErrSchedulerNotSet        = errors.New("scenario: scheduler was not set")
	ErrPeriodNotProvided      = errors.New("scenario: period not provided")
	ErrDurationNotProvided    = errors.New("scenario: duration not provided")
	ErrDurationNotPopulated   = errors.New("scenario: duration not populated")
	ErrDuplicateStepName      = errors.New("scenario: unordered step name already in use")
)

// Scenario assertion failures.
var (
	ErrUnwantedNotification = errors.New("scenario: notification that should never happen was observed")
	ErrDeadlineMissed       = errors.New("scenario: notification was not observed in time")
	ErrTooEarly             = errors.New("scenario: notification was observed too early")
	ErrTooLate              = errors.New("scenario: notification was observed too late")
	ErrNotObserved          = errors.New("scenario: notification was never observed")
	ErrSimulationIdle       = errors.New("scenario: simulation has no more events")
	ErrTimeLimitReached     = errors.New("scenario: time limit reached")
)

// StepError attributes a failure to the step that caused it.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	name := e.Step.Name()
	if name == "" {
		return fmt.Sprintf("step %d (%s) failed: %v",
			e.Step.StepOrder(), e.Step.StepName(), e.Err)
	}

	return fmt.Sprintf("step %d (%s) %q failed: %v",
		e.Step.StepOrder(), e.Step.StepName(), name, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepError(step Step, err error) error {
	var existing *StepError
	if errors.As(err, &existing) {
		return err
	}

	return &StepError{Step: step, Err: err}
}
