package scenario

import (
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/sarchlab/simcheck/timing"
)

// ThenSteps is the base of the assertion vocabulary of a scenario. Domain
// packages wrap it and add checks through Expect and ExpectNext.
//
// ThenSteps is a value; the modifiers return a copy that applies to the next
// declared check only.
type ThenSteps struct {
	manager       *StepManager
	executionType CheckStepExecutionType
}

// NewThenSteps creates ThenSteps that declare ordered checks.
func NewThenSteps(manager *StepManager) ThenSteps {
	return ThenSteps{manager: manager, executionType: Ordered()}
}

// Manager returns the StepManager checks are added to.
func (t ThenSteps) Manager() *StepManager {
	return t.manager
}

// ExecutionType returns the semantics of the next declared check.
func (t ThenSteps) ExecutionType() CheckStepExecutionType {
	return t.executionType
}

// WithExecutionType returns a copy declaring checks of type et.
func (t ThenSteps) WithExecutionType(et CheckStepExecutionType) ThenSteps {
	t.executionType = et.ApplyModifiersFrom(t.executionType)
	return t
}

// Unordered returns a copy declaring an unordered check called name.
func (t ThenSteps) Unordered(name string) ThenSteps {
	return t.WithExecutionType(Unordered(name))
}

// Never returns a copy declaring a check called name that must never match.
func (t ThenSteps) Never(name string) ThenSteps {
	return t.WithExecutionType(Never(name))
}

// Within returns a copy declaring a check that must match within d.
func (t ThenSteps) Within(d timing.VTimeInSec) ThenSteps {
	return t.WithinFuture(FutureOf(d))
}

// WithinFuture is Within with a duration computed while the scenario runs.
func (t ThenSteps) WithinFuture(d StepFuture[timing.VTimeInSec]) ThenSteps {
	return t.WithExecutionType(Within(t.manager.SchedulerSupplier(), d))
}

// AfterExactly returns a copy declaring a check that must match exactly d
// after it activates.
func (t ThenSteps) AfterExactly(d timing.VTimeInSec) ThenSteps {
	return t.AfterExactlyFuture(FutureOf(d))
}

// AfterExactlyFuture is AfterExactly with a computed duration.
func (t ThenSteps) AfterExactlyFuture(d StepFuture[timing.VTimeInSec]) ThenSteps {
	return t.WithExecutionType(AfterExactly(t.manager.SchedulerSupplier(), d))
}

// AfterAtLeast returns a copy declaring a check that must not match before d
// has passed since it activated.
func (t ThenSteps) AfterAtLeast(d timing.VTimeInSec) ThenSteps {
	return t.AfterAtLeastFuture(FutureOf(d))
}

// AfterAtLeastFuture is AfterAtLeast with a computed duration.
func (t ThenSteps) AfterAtLeastFuture(d StepFuture[timing.VTimeInSec]) ThenSteps {
	return t.WithExecutionType(AfterAtLeast(t.manager.SchedulerSupplier(), d))
}

// Named returns a copy whose next check is called name.
func (t ThenSteps) Named(name string) ThenSteps {
	t.executionType = t.executionType.Named(name)
	return t
}

// Failing returns a copy whose next check is expected to fail.
func (t ThenSteps) Failing() ThenSteps {
	t.executionType = t.executionType.MarkFailingStep()
	return t
}

// Expect declares a check for a notification of type N that satisfies
// predicate.
func Expect[N any](t ThenSteps, predicate func(N) bool) *CheckStep {
	check := NewCheckStep(predicate)
	t.manager.AddCheck(check, t.executionType)

	return check
}

// ExpectNext declares a check that takes the next notification of type N and
// fails the scenario if assertion rejects it.
func ExpectNext[N any](t ThenSteps, assertion func(N) error) *CheckStep {
	check := NewAssertCheckStep(assertion)
	t.manager.AddCheck(check, t.executionType)

	return check
}

// ExpectFailure adds an ordered step that waits for a simulation action to
// fail with an error accepted by match.
func ExpectFailure(manager *StepManager, match func(error) bool) *FailureCheckStep {
	step := NewFailureCheckStep(match)
	manager.AddFailureCheck(step)

	return step
}

// ExpectFailureIs adds an ordered step that waits for a simulation action to
// fail with target in its chain.
func ExpectFailureIs(manager *StepManager, target error) *FailureCheckStep {
	return ExpectFailure(manager, func(err error) bool {
		return errors.Is(err, target)
	})
}

// ExpectFutureEquals adds an ordered step that fails unless future holds a
// value equal to expected.
func ExpectFutureEquals[T any](
	manager *StepManager,
	expected T,
	future StepFuture[T],
	opts ...cmp.Option,
) {
	manager.AddExecute(NewExecuteStep(func() error {
		actual, err := future.Get()
		if err != nil {
			return err
		}

		if diff := cmp.Diff(expected, actual, opts...); diff != "" {
			return fmt.Errorf("future mismatch (-want +got):\n%s", diff)
		}

		return nil
	}))
}

// PopulateFuture adds an ordered step that populates future with the value
// returned by produce.
func PopulateFuture[T any](
	manager *StepManager,
	future *MutableStepFuture[T],
	produce func() (T, error),
) {
	manager.AddExecute(NewExecuteStep(func() error {
		v, err := produce()
		if err != nil {
			return err
		}

		return future.Populate(v)
	}))
}

// Wait adds an ordered step that waits for d.
func Wait(manager *StepManager, d timing.VTimeInSec) {
	manager.Add(NewWaitStep(d))
}

// WaitFuture adds an ordered step that waits for a computed duration.
func WaitFuture(manager *StepManager, d StepFuture[timing.VTimeInSec]) {
	manager.Add(NewWaitStepFuture(d))
}

// Broadcast adds an ordered step that broadcasts n.
func Broadcast(manager *StepManager, n any) {
	manager.Add(NewBroadcastStep(n))
}
