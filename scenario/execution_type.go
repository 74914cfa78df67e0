package scenario

import (
	"fmt"

	"github.com/sarchlab/simcheck/idgen"
	"github.com/sarchlab/simcheck/timing"
)

// SchedulerSupplier returns the scheduler a timed step measures against. It
// is called when the step activates, not when it is declared.
type SchedulerSupplier func() timing.EventScheduler

// CheckKind is the semantics a check step runs with.
type CheckKind int

// The check kinds.
const (
	// CheckOrdered checks wait at the head of the ordered sequence.
	CheckOrdered CheckKind = iota

	// CheckUnordered checks match any later notification.
	CheckUnordered

	// CheckNever checks fail if they ever match and pass at scenario end.
	CheckNever

	// CheckWithin checks must match no later than the duration after
	// activation.
	CheckWithin

	// CheckAfterExactly checks must match exactly the duration after
	// activation.
	CheckAfterExactly

	// CheckAfterAtLeast checks must not match before the duration after
	// activation.
	CheckAfterAtLeast
)

func (k CheckKind) String() string {
	switch k {
	case CheckOrdered:
		return "ordered"
	case CheckUnordered:
		return "unordered"
	case CheckNever:
		return "never"
	case CheckWithin:
		return "within"
	case CheckAfterExactly:
		return "after_exactly"
	case CheckAfterAtLeast:
		return "after_at_least"
	default:
		return fmt.Sprintf("CheckKind(%d)", int(k))
	}
}

func (k CheckKind) timed() bool {
	return k == CheckWithin || k == CheckAfterExactly || k == CheckAfterAtLeast
}

// CheckStepExecutionType configures how a check step is executed. It is an
// immutable value; the modifier methods return a modified copy.
type CheckStepExecutionType struct {
	name        string
	kind        CheckKind
	scheduler   SchedulerSupplier
	duration    StepFuture[timing.VTimeInSec]
	failingStep bool
}

func newCheckType(
	name string,
	kind CheckKind,
	scheduler SchedulerSupplier,
	duration StepFuture[timing.VTimeInSec],
) CheckStepExecutionType {
	if name == "" && kind != CheckOrdered {
		name = idgen.Generate("check")
	}

	return CheckStepExecutionType{
		name:      name,
		kind:      kind,
		scheduler: scheduler,
		duration:  duration,
	}
}

// Ordered creates the execution type of an ordered check. Ordered checks are
// found by position, so they stay unnamed unless Named is used.
func Ordered() CheckStepExecutionType {
	return newCheckType("", CheckOrdered, nil, nil)
}

// Unordered creates the execution type of an unordered check. An empty name
// is replaced by a generated one.
func Unordered(name string) CheckStepExecutionType {
	return newCheckType(name, CheckUnordered, nil, nil)
}

// Never creates the execution type of a check that must never match.
func Never(name string) CheckStepExecutionType {
	return newCheckType(name, CheckNever, nil, nil)
}

// Within creates the execution type of a check that must match within
// duration of its activation.
func Within(
	scheduler SchedulerSupplier,
	duration StepFuture[timing.VTimeInSec],
) CheckStepExecutionType {
	return newCheckType("", CheckWithin, scheduler, duration)
}

// AfterExactly creates the execution type of a check that must match exactly
// duration after its activation.
func AfterExactly(
	scheduler SchedulerSupplier,
	duration StepFuture[timing.VTimeInSec],
) CheckStepExecutionType {
	return newCheckType("", CheckAfterExactly, scheduler, duration)
}

// AfterAtLeast creates the execution type of a check that must not match
// earlier than duration after its activation.
func AfterAtLeast(
	scheduler SchedulerSupplier,
	duration StepFuture[timing.VTimeInSec],
) CheckStepExecutionType {
	return newCheckType("", CheckAfterAtLeast, scheduler, duration)
}

// Named returns a copy with the given step name.
func (t CheckStepExecutionType) Named(name string) CheckStepExecutionType {
	t.name = name
	return t
}

// MarkFailingStep returns a copy that is expected to fail.
func (t CheckStepExecutionType) MarkFailingStep() CheckStepExecutionType {
	t.failingStep = true
	return t
}

// ApplyModifiersFrom returns a copy that carries the modifiers of other.
func (t CheckStepExecutionType) ApplyModifiersFrom(
	other CheckStepExecutionType,
) CheckStepExecutionType {
	t.failingStep = t.failingStep || other.failingStep
	return t
}

// Name returns the name the step is registered under once it is unordered.
func (t CheckStepExecutionType) Name() string {
	return t.name
}

// Kind returns the check semantics.
func (t CheckStepExecutionType) Kind() CheckKind {
	return t.kind
}

// IsOrdered tells if the check waits at the head of the ordered sequence.
func (t CheckStepExecutionType) IsOrdered() bool {
	return t.kind == CheckOrdered
}

// IsFailingStep tells if the step is expected to fail.
func (t CheckStepExecutionType) IsFailingStep() bool {
	return t.failingStep
}

// Scheduler returns the scheduler of a timed check.
func (t CheckStepExecutionType) Scheduler() (timing.EventScheduler, error) {
	if t.scheduler == nil {
		return nil, ErrSchedulerNotSet
	}

	scheduler := t.scheduler()
	if scheduler == nil {
		return nil, ErrSchedulerNotSet
	}

	return scheduler, nil
}

// Duration returns the duration of a timed check.
func (t CheckStepExecutionType) Duration() (timing.VTimeInSec, error) {
	if t.duration == nil {
		return 0, ErrDurationNotProvided
	}

	if !t.duration.HasBeenPopulated() {
		return 0, ErrDurationNotPopulated
	}

	return t.duration.Get()
}

// ExecuteKind is the semantics an execute step runs with.
type ExecuteKind int

// The execute kinds.
const (
	ExecuteOrdered ExecuteKind = iota
	ExecutePeriodic
)

func (k ExecuteKind) String() string {
	switch k {
	case ExecuteOrdered:
		return "ordered"
	case ExecutePeriodic:
		return "periodic"
	default:
		return fmt.Sprintf("ExecuteKind(%d)", int(k))
	}
}

// ExecuteStepExecutionType configures how an execute step is executed.
type ExecuteStepExecutionType struct {
	kind      ExecuteKind
	scheduler SchedulerSupplier
	period    timing.VTimeInSec
	hasPeriod bool
}

// OrderedExecution creates the execution type of a step that runs once when
// the ordered sequence reaches it.
func OrderedExecution() ExecuteStepExecutionType {
	return ExecuteStepExecutionType{kind: ExecuteOrdered}
}

// Periodic creates the execution type of a step that runs when the ordered
// sequence reaches it and then every period until the scenario ends.
func Periodic(
	scheduler SchedulerSupplier,
	period timing.VTimeInSec,
) ExecuteStepExecutionType {
	return ExecuteStepExecutionType{
		kind:      ExecutePeriodic,
		scheduler: scheduler,
		period:    period,
		hasPeriod: true,
	}
}

// Kind returns the execution semantics.
func (t ExecuteStepExecutionType) Kind() ExecuteKind {
	return t.kind
}

// IsOrdered tells if the step runs once in sequence.
func (t ExecuteStepExecutionType) IsOrdered() bool {
	return t.kind == ExecuteOrdered
}

// Scheduler returns the supplier of the scheduler that repeats the step.
func (t ExecuteStepExecutionType) Scheduler() (SchedulerSupplier, error) {
	if t.scheduler == nil {
		return nil, ErrSchedulerNotSet
	}

	return t.scheduler, nil
}

// Period returns the repetition period.
func (t ExecuteStepExecutionType) Period() (timing.VTimeInSec, error) {
	if !t.hasPeriod {
		return 0, ErrPeriodNotProvided
	}

	return t.period, nil
}
