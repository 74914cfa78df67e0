package scenario

import (
	"fmt"
	"math"

	"github.com/sarchlab/simcheck/timing"
)

// An after exactly check allows a slack around its target time of
// AfterExactlyTolerance seconds or AfterExactlyRelativeTolerance times the
// target, whichever is larger. The relative part keeps the slack above the
// float64 resolution of late simulation times.
const (
	AfterExactlyTolerance         timing.VTimeInSec = 1e-9
	AfterExactlyRelativeTolerance                   = 1e-12
)

// ExactTolerance returns the slack an after exactly check allows around
// target.
func ExactTolerance(target timing.VTimeInSec) timing.VTimeInSec {
	relative := timing.VTimeInSec(
		AfterExactlyRelativeTolerance * math.Abs(float64(target)))

	return max(AfterExactlyTolerance, relative)
}

// CheckState is where an active check is in its lifecycle.
type CheckState int

// The check states. Passed and Failed are terminal.
const (
	CheckPending CheckState = iota
	CheckPassed
	CheckFailed
)

func (s CheckState) String() string {
	switch s {
	case CheckPending:
		return "pending"
	case CheckPassed:
		return "passed"
	case CheckFailed:
		return "failed"
	default:
		return fmt.Sprintf("CheckState(%d)", int(s))
	}
}

// UnorderedDeclaration is the ordered placeholder of an unordered check. When
// the ordered sequence reaches it, the StepManager activates the check: its
// timing starts and it is registered in the unordered table.
type UnorderedDeclaration struct {
	stepBase
	check         *CheckStep
	executionType CheckStepExecutionType
}

// Check returns the declared check.
func (d *UnorderedDeclaration) Check() *CheckStep {
	return d.check
}

// ExecutionType returns how the check runs once activated.
func (d *UnorderedDeclaration) ExecutionType() CheckStepExecutionType {
	return d.executionType
}

func (d *UnorderedDeclaration) resolve(now timing.VTimeInSec) (*ActiveCheck, error) {
	t := d.executionType
	active := &ActiveCheck{
		check:       d.check,
		kind:        t.Kind(),
		activatedAt: now,
	}
	active.stepBase = stepBase{
		stepName:  d.stepName,
		stepOrder: d.stepOrder,
		name:      t.Name(),
	}

	if !t.Kind().timed() {
		return active, nil
	}

	scheduler, err := t.Scheduler()
	if err != nil {
		return nil, err
	}

	duration, err := t.Duration()
	if err != nil {
		return nil, err
	}

	active.scheduler = scheduler
	active.activatedAt = scheduler.CurrentTime()
	active.duration = duration

	return active, nil
}

// ActiveCheck is an unordered check that has been activated.
type ActiveCheck struct {
	stepBase
	check       *CheckStep
	kind        CheckKind
	scheduler   timing.EventScheduler
	activatedAt timing.VTimeInSec
	duration    timing.VTimeInSec
	generation  int
	state       CheckState
	err         error
}

// NewActiveCheck creates an unordered check that is active from the start of
// the scenario.
func NewActiveCheck(name string, check *CheckStep) *ActiveCheck {
	return &ActiveCheck{
		stepBase: stepBase{name: name},
		check:    check,
		kind:     CheckUnordered,
	}
}

// Check returns the check that decides matches.
func (c *ActiveCheck) Check() *CheckStep { return c.check }

// Kind returns the semantics of the check.
func (c *ActiveCheck) Kind() CheckKind { return c.kind }

// State returns the lifecycle state.
func (c *ActiveCheck) State() CheckState { return c.state }

// Err returns why the check failed.
func (c *ActiveCheck) Err() error { return c.err }

// ActivatedAt returns when the timing of the check started.
func (c *ActiveCheck) ActivatedAt() timing.VTimeInSec { return c.activatedAt }

// Generation returns the notification generation the check was activated
// in. Notifications buffered in an earlier generation are not offered to it.
func (c *ActiveCheck) Generation() int { return c.generation }

// Deadline returns when the check fails if it has not matched yet.
func (c *ActiveCheck) Deadline() (timing.VTimeInSec, bool) {
	switch c.kind {
	case CheckWithin:
		return c.activatedAt + c.duration, true
	case CheckAfterExactly:
		target := c.activatedAt + c.duration
		return target + ExactTolerance(target), true
	default:
		return 0, false
	}
}

// IsBlocking tells if the scenario has to wait for the check to finish. Never
// checks only end with the scenario.
func (c *ActiveCheck) IsBlocking() bool {
	return c.state == CheckPending && c.kind != CheckNever
}

// Observe offers a notification that arrived at time at. It returns true if
// the check consumed the notification, which happens when the notification
// matched or when testing it failed.
func (c *ActiveCheck) Observe(n any, at timing.VTimeInSec) bool {
	if c.state != CheckPending {
		return false
	}

	matched, err := c.check.Test(n)
	if err != nil {
		c.fail(err)
		return true
	}

	if !matched {
		return false
	}

	c.onMatch(at)

	return true
}

func (c *ActiveCheck) onMatch(at timing.VTimeInSec) {
	target := c.activatedAt + c.duration

	switch c.kind {
	case CheckUnordered:
		c.pass()
	case CheckNever:
		c.fail(ErrUnwantedNotification)
	case CheckWithin:
		if at > target {
			c.fail(fmt.Errorf("%w: at %.10f, deadline %.10f",
				ErrTooLate, at, target))
			return
		}
		c.pass()
	case CheckAfterExactly:
		if math.Abs(float64(at-target)) > float64(ExactTolerance(target)) {
			base := ErrTooEarly
			if at > target {
				base = ErrTooLate
			}
			c.fail(fmt.Errorf("%w: at %.10f, expected %.10f", base, at, target))
			return
		}
		c.pass()
	case CheckAfterAtLeast:
		if at < target {
			c.fail(fmt.Errorf("%w: at %.10f, expected no earlier than %.10f",
				ErrTooEarly, at, target))
			return
		}
		c.pass()
	default:
		panic(fmt.Sprintf("scenario: check kind %s cannot be active", c.kind))
	}
}

// Expire fails the check if it is still pending when its deadline passes.
func (c *ActiveCheck) Expire() {
	if c.state != CheckPending {
		return
	}

	deadline, _ := c.Deadline()
	c.fail(fmt.Errorf("%w: deadline %.10f", ErrDeadlineMissed, deadline))
}

// Finish resolves a pending check when the scenario ends. Never checks pass,
// every other pending check fails.
func (c *ActiveCheck) Finish() {
	if c.state != CheckPending {
		return
	}

	if c.kind == CheckNever {
		c.pass()
		return
	}

	c.fail(ErrNotObserved)
}

func (c *ActiveCheck) pass() {
	c.state = CheckPassed
}

func (c *ActiveCheck) fail(err error) {
	c.state = CheckFailed
	c.err = err
}
