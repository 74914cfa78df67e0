package scenario

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/simcheck/notify"
	"github.com/sarchlab/simcheck/timing"
)

// A Step is one unit of a scenario.
//
// The set of steps is closed; the Runner dispatches on the concrete kind.
type Step interface {
	// StepName is the function that declared the step.
	StepName() string

	// StepOrder is the declaration order of the step in its scenario.
	StepOrder() int

	// Name is the user-facing name, empty for anonymous ordered steps.
	Name() string

	base() *stepBase
}

type stepBase struct {
	stepName  string
	stepOrder int
	name      string
}

func (s *stepBase) StepName() string { return s.stepName }
func (s *stepBase) StepOrder() int   { return s.stepOrder }
func (s *stepBase) Name() string     { return s.name }
func (s *stepBase) base() *stepBase  { return s }

func (s *stepBase) String() string {
	if s.name == "" {
		return fmt.Sprintf("%d:%s", s.stepOrder, s.stepName)
	}

	return fmt.Sprintf("%d:%s[%s]", s.stepOrder, s.stepName, s.name)
}

func describe(step Step) string {
	return step.base().String()
}

// ExecuteStep runs an action when the ordered sequence reaches it.
type ExecuteStep struct {
	stepBase
	action func() error
}

// NewExecuteStep creates an execute step.
func NewExecuteStep(action func() error) *ExecuteStep {
	return &ExecuteStep{action: action}
}

// NewExecuteStepFunc creates an execute step from an action that cannot
// fail.
func NewExecuteStepFunc(action func()) *ExecuteStep {
	return NewExecuteStep(func() error {
		action()
		return nil
	})
}

// Execute runs the action.
func (s *ExecuteStep) Execute() error {
	if s.action == nil {
		return nil
	}

	return s.action()
}

// PeriodicExecuteStep repeats an execute step every period once the ordered
// sequence reaches it, until the scenario ends.
type PeriodicExecuteStep struct {
	stepBase
	step      *ExecuteStep
	scheduler SchedulerSupplier
	period    timing.VTimeInSec
	cancelled bool
	runs      int
}

// NewPeriodicExecuteStep wraps step so that it repeats every period.
func NewPeriodicExecuteStep(
	step *ExecuteStep,
	scheduler SchedulerSupplier,
	period timing.VTimeInSec,
) *PeriodicExecuteStep {
	if period <= 0 {
		panic("scenario: period must be positive")
	}

	return &PeriodicExecuteStep{
		step:      step,
		scheduler: scheduler,
		period:    period,
	}
}

// Period returns the repetition period.
func (s *PeriodicExecuteStep) Period() timing.VTimeInSec {
	return s.period
}

// Runs returns how many times the step has run.
func (s *PeriodicExecuteStep) Runs() int {
	return s.runs
}

// Cancel stops future repetitions.
func (s *PeriodicExecuteStep) Cancel() {
	s.cancelled = true
}

// IsCancelled tells if the step will not run again.
func (s *PeriodicExecuteStep) IsCancelled() bool {
	return s.cancelled
}

func (s *PeriodicExecuteStep) start() error {
	if s.scheduler == nil {
		return ErrSchedulerNotSet
	}

	scheduler := s.scheduler()
	if scheduler == nil {
		return ErrSchedulerNotSet
	}

	s.tick(scheduler)

	return nil
}

func (s *PeriodicExecuteStep) tick(scheduler timing.EventScheduler) {
	scheduler.DoNow(func() error {
		if s.cancelled {
			return nil
		}

		s.runs++
		err := s.step.Execute()
		if err != nil {
			return stepError(s, err)
		}

		scheduler.DoIn(s.period, func() error {
			s.tick(scheduler)
			return nil
		}, "periodic "+describe(s))

		return nil
	}, "periodic "+describe(s))
}

// WaitStep blocks the ordered sequence for a duration of simulated time.
type WaitStep struct {
	stepBase
	duration StepFuture[timing.VTimeInSec]
}

// NewWaitStep creates a step that waits for d.
func NewWaitStep(d timing.VTimeInSec) *WaitStep {
	return &WaitStep{duration: FutureOf(d)}
}

// NewWaitStepFuture creates a step that waits for a duration computed while
// the scenario runs.
func NewWaitStepFuture(d StepFuture[timing.VTimeInSec]) *WaitStep {
	return &WaitStep{duration: d}
}

// Duration returns the duration to wait.
func (s *WaitStep) Duration() (timing.VTimeInSec, error) {
	if !s.duration.HasBeenPopulated() {
		return 0, ErrDurationNotPopulated
	}

	return s.duration.Get()
}

// ScheduledStep blocks the ordered sequence until an absolute simulated time
// and then runs an optional action.
type ScheduledStep struct {
	stepBase
	at     timing.VTimeInSec
	action func() error
}

// NewScheduledStep creates a scheduled step. The action may be nil.
func NewScheduledStep(at timing.VTimeInSec, action func() error) *ScheduledStep {
	return &ScheduledStep{at: at, action: action}
}

// At returns when the step fires.
func (s *ScheduledStep) At() timing.VTimeInSec {
	return s.at
}

// BroadcastStep broadcasts a notification on the router of the run.
type BroadcastStep struct {
	stepBase
	notification any
}

// NewBroadcastStep creates a broadcast step.
func NewBroadcastStep(notification any) *BroadcastStep {
	return &BroadcastStep{notification: notification}
}

// Notification returns what is broadcast.
func (s *BroadcastStep) Notification() any {
	return s.notification
}

// CheckStep waits for a notification of a type that satisfies a test.
type CheckStep struct {
	stepBase
	notificationType reflect.Type
	test             func(n any) (bool, error)
}

// NewCheckStep creates a check that matches notifications of type N (or
// assignable to N, when N is an interface) that satisfy predicate.
func NewCheckStep[N any](predicate func(N) bool) *CheckStep {
	return &CheckStep{
		notificationType: reflect.TypeFor[N](),
		test: func(n any) (bool, error) {
			return predicate(n.(N)), nil
		},
	}
}

// NewAssertCheckStep creates a check that matches the first notification of
// type N and fails the scenario if assertion returns an error for it.
func NewAssertCheckStep[N any](assertion func(N) error) *CheckStep {
	return &CheckStep{
		notificationType: reflect.TypeFor[N](),
		test: func(n any) (bool, error) {
			if err := assertion(n.(N)); err != nil {
				return false, err
			}

			return true, nil
		},
	}
}

// NotificationType returns the type the check listens for.
func (s *CheckStep) NotificationType() reflect.Type {
	return s.notificationType
}

// Accepts tells if n is of the type the check listens for.
func (s *CheckStep) Accepts(n any) bool {
	if n == nil {
		return false
	}

	return notify.Matches(reflect.TypeOf(n), s.notificationType)
}

// Test tells if n satisfies the check. A returned error fails the check.
func (s *CheckStep) Test(n any) (bool, error) {
	if !s.Accepts(n) {
		return false, nil
	}

	return s.test(n)
}

// FailureCheckStep expects a simulation action to fail. It completes when the
// ordered sequence has reached it and the engine reports a failure that
// match accepts. Any other failure still fails the scenario.
type FailureCheckStep struct {
	stepBase
	match func(error) bool
}

// NewFailureCheckStep creates a step that expects a failure accepted by
// match.
func NewFailureCheckStep(match func(error) bool) *FailureCheckStep {
	return &FailureCheckStep{match: match}
}

// Matches tells if err is the expected failure.
func (s *FailureCheckStep) Matches(err error) bool {
	return s.match(err)
}

// WaitForStepsStep blocks the ordered sequence until any, or all, of the
// named unordered steps have finished. Once satisfied it removes the named
// steps that are still active and populates its future with the names that
// finished.
type WaitForStepsStep struct {
	stepBase
	names    []string
	any      bool
	finished *MutableStepFuture[[]string]
}

// NewWaitForAnyStep waits for the first of names to finish.
func NewWaitForAnyStep(names ...string) *WaitForStepsStep {
	return &WaitForStepsStep{
		names:    names,
		any:      true,
		finished: NewMutableStepFuture[[]string](),
	}
}

// NewWaitForAllStep waits for all of names to finish.
func NewWaitForAllStep(names ...string) *WaitForStepsStep {
	return &WaitForStepsStep{
		names:    names,
		finished: NewMutableStepFuture[[]string](),
	}
}

// Names returns the steps waited for.
func (s *WaitForStepsStep) Names() []string {
	return s.names
}

// Finished returns the future populated with the names that finished.
func (s *WaitForStepsStep) Finished() StepFuture[[]string] {
	return s.finished
}

func (s *WaitForStepsStep) satisfied(cache *StepCache) ([]string, bool) {
	var done []string
	for _, name := range s.names {
		if cache.IsFinished(name) {
			done = append(done, name)
		}
	}

	if s.any {
		return done, len(done) > 0
	}

	return done, len(done) == len(s.names)
}
