package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sarchlab/simcheck/instrumentation/hooking"
	"github.com/sarchlab/simcheck/notify"
	"github.com/sarchlab/simcheck/timing"
)

// Runner executes a scenario against the simulation of its StepManager.
//
// Every method other than Run executes on the engine worker. The simulation
// is expected to broadcast its notifications from engine events.
type Runner struct {
	*hooking.HookableBase

	manager       *StepManager
	cache         *StepCache
	notifications *NotificationCache
	engine        timing.Engine
	router        *notify.Router
	timeLimit     timing.VTimeInSec

	progressing bool
	dirty       bool
	waiting     bool
	done        bool
	result      *Result
}

// NewRunner creates a Runner for the scenario authored through manager.
func NewRunner(manager *StepManager) *Runner {
	sim := manager.Simulation()

	return &Runner{
		HookableBase:  hooking.NewHookableBase(),
		manager:       manager,
		cache:         manager.Cache(),
		notifications: manager.Notifications(),
		engine:        sim.Scheduler(),
		router:        sim.Router(),
	}
}

// WithTimeLimit fails the scenario if it is still running at limit.
func (r *Runner) WithTimeLimit(limit timing.VTimeInSec) *Runner {
	r.timeLimit = limit
	return r
}

// Run starts the engine, drives the scenario to its verdict, and stops the
// engine. It returns an error only if ctx ends first.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	sub := notify.Subscribe(r.router, r.onNotification)
	defer r.router.Unregister(sub)

	r.engine.RegisterFailureListener(r.onActionFailure)

	if r.timeLimit > 0 {
		r.engine.Schedule(timing.Event{
			Time:        r.timeLimit,
			IsSecondary: true,
			Description: "scenario time limit",
			Action: func() error {
				r.fail(fmt.Errorf("%w: %.10f", ErrTimeLimitReached, r.timeLimit))
				return nil
			},
		})
	}

	r.engine.DoNow(func() error {
		r.progress()
		return nil
	}, "scenario start")
	r.engine.Start()

	for {
		if err := r.engine.WaitIdle(ctx); err != nil {
			r.engine.Stop()
			return nil, err
		}

		if r.engine.Status() != timing.StatusRunning {
			break
		}

		r.engine.DoNow(func() error {
			r.onIdle()
			return nil
		}, "scenario idle")
	}

	if err := r.engine.Wait(ctx); err != nil {
		return nil, err
	}

	if r.result == nil {
		return nil, fmt.Errorf("scenario: engine stopped before a verdict")
	}

	return r.result, nil
}

func (r *Runner) onNotification(n any) {
	if r.done {
		return
	}

	if !r.notifications.Add(n, r.engine.CurrentTime()) {
		return
	}

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    HookPosNotification,
		Item:   n,
	})

	r.progress()
}

func (r *Runner) onActionFailure(err error) {
	if r.done {
		return
	}

	check, ok := r.cache.Head().(*FailureCheckStep)
	if !ok || !check.Matches(err) {
		r.fail(err)
		return
	}

	r.startStep(check)
	r.completeHead(check)
	r.progress()
}

func (r *Runner) onIdle() {
	if r.done {
		return
	}

	r.progress()
	if r.done {
		return
	}

	r.fail(r.idleError())
}

func (r *Runner) idleError() error {
	var waiting []string

	if head := r.cache.Head(); head != nil {
		waiting = append(waiting, describe(head))
	}

	for _, c := range r.cache.UnorderedChecks() {
		if c.IsBlocking() {
			waiting = append(waiting, describe(c))
		}
	}

	err := fmt.Errorf("%w, waiting for %s",
		ErrSimulationIdle, strings.Join(waiting, ", "))

	if head := r.cache.Head(); head != nil {
		return stepError(head, err)
	}

	for _, c := range r.cache.UnorderedChecks() {
		if c.IsBlocking() {
			return stepError(c, err)
		}
	}

	return err
}

// progress advances the scenario as far as it can at the current time.
// Calls made while it runs, typically notifications broadcast by a step, are
// picked up by the running call.
func (r *Runner) progress() {
	if r.progressing {
		r.dirty = true
		return
	}

	r.progressing = true
	defer func() { r.progressing = false }()

	for !r.done {
		r.dirty = false
		r.advance()

		if r.done {
			return
		}

		if !r.dirty {
			break
		}
	}

	r.completeIfFinished()
}

func (r *Runner) advance() {
	for !r.done {
		if !r.runUnorderedExecutes() {
			return
		}

		interrupted := r.offerPending()
		if r.done {
			return
		}

		if r.executeHead() {
			continue
		}

		if !interrupted {
			return
		}
	}
}

// runUnorderedExecutes runs the registered unordered execute steps that have
// not run yet. It returns false if one of them failed.
func (r *Runner) runUnorderedExecutes() bool {
	for _, s := range r.cache.TakeUnorderedExecutes() {
		r.startStep(s)
		if err := s.Execute(); err != nil {
			r.fail(stepError(s, err))
			return false
		}

		r.cache.MarkFinished(s.Name())
		r.endStep(s, nil)
	}

	return true
}

// offerPending offers buffered notifications to the live unordered checks in
// activation order and then to the ordered head check. The ordered head
// discards every notification it does not match. While the head is not a
// check, a notification that no unordered check took and no later ordered
// check accepts is dropped.
//
// It returns true when it stopped early because the ordered sequence can move
// on. The steps that follow must run before later notifications are offered.
func (r *Runner) offerPending() bool {
	for _, p := range r.notifications.Pending() {
		if r.offerUnordered(p) {
			r.notifications.Consume(p)
			if r.done {
				return false
			}

			if _, ok := r.cache.Head().(*WaitForStepsStep); ok {
				return true
			}

			continue
		}

		check, ok := r.cache.Head().(*CheckStep)
		if !ok {
			if p.offered && !r.cache.IsAwaited(p.Notification) {
				r.notifications.Consume(p)
			}

			continue
		}

		r.notifications.Consume(p)

		matched, err := check.Test(p.Notification)
		if err != nil {
			r.fail(stepError(check, err))
			return false
		}

		if matched {
			r.completeHead(check)
			return true
		}
	}

	return false
}

// offerUnordered offers p to the live unordered checks. A notification that
// every check has declined is not offered again.
func (r *Runner) offerUnordered(p *PendingNotification) bool {
	if p.offered {
		return false
	}

	for _, c := range r.cache.UnorderedChecks() {
		if p.Generation < c.Generation() {
			continue
		}

		if !c.Observe(p.Notification, p.Time) {
			continue
		}

		r.onCheckResolved(c)

		return true
	}

	p.offered = true

	return false
}

func (r *Runner) onCheckResolved(c *ActiveCheck) {
	switch c.State() {
	case CheckPassed:
		r.cache.RemoveUnordered(c.Name())
		r.cache.MarkFinished(c.Name())
		r.endStep(c, nil)
	case CheckFailed:
		r.fail(stepError(c, c.Err()))
	}
}

// executeHead runs the ordered head step. It returns false when the head
// cannot complete at the current time.
func (r *Runner) executeHead() bool {
	head := r.cache.Head()
	if head == nil || r.waiting {
		return false
	}

	switch s := head.(type) {
	case *CheckStep, *FailureCheckStep:
		return false
	case *ExecuteStep:
		r.startStep(s)
		if err := s.Execute(); err != nil {
			r.fail(stepError(s, err))
			return false
		}
		r.completeHead(s)
	case *UnorderedDeclaration:
		r.startStep(s)
		if !r.activate(s) {
			return false
		}
		r.completeHead(s)
	case *PeriodicExecuteStep:
		r.startStep(s)
		if err := s.start(); err != nil {
			r.fail(stepError(s, err))
			return false
		}
		r.cache.AddPeriodic(s)
		r.completeHead(s)
	case *BroadcastStep:
		r.startStep(s)
		r.completeHead(s)
		r.router.Broadcast(s.Notification())
	case *WaitStep:
		return r.startWait(s)
	case *ScheduledStep:
		return r.startScheduled(s)
	case *WaitForStepsStep:
		return r.tryWaitForSteps(s)
	default:
		panic(fmt.Sprintf("scenario: unknown step type %T", head))
	}

	return true
}

func (r *Runner) completeHead(step Step) {
	r.cache.Advance()
	r.endStep(step, nil)
}

func (r *Runner) activate(decl *UnorderedDeclaration) bool {
	active, err := r.manager.Activate(decl, r.engine.CurrentTime())
	if err != nil {
		r.fail(err)
		return false
	}

	deadline, ok := active.Deadline()
	if !ok {
		return true
	}

	active.scheduler.Schedule(timing.Event{
		Time:        deadline,
		IsSecondary: true,
		Description: "deadline " + describe(active),
		Action: func() error {
			if r.done {
				return nil
			}

			r.progress()
			if r.done {
				return nil
			}

			registered, found := r.cache.Unordered(active.Name())
			if !found || registered != active || active.State() != CheckPending {
				return nil
			}

			active.Expire()
			r.onCheckResolved(active)
			r.progress()

			return nil
		},
	})

	return true
}

func (r *Runner) startWait(s *WaitStep) bool {
	d, err := s.Duration()
	if err != nil {
		r.fail(stepError(s, err))
		return false
	}

	r.startStep(s)
	r.waiting = true
	r.engine.DoIn(d, func() error {
		r.finishWait(s)
		return nil
	}, "wait "+describe(s))

	return false
}

func (r *Runner) startScheduled(s *ScheduledStep) bool {
	r.startStep(s)

	if s.at < r.engine.CurrentTime() {
		r.fail(stepError(s, fmt.Errorf(
			"scheduled at %.10f, which has passed", s.at)))
		return false
	}

	r.waiting = true
	r.engine.DoAt(s.at, func() error {
		if s.action != nil && !r.done {
			if err := s.action(); err != nil {
				r.fail(stepError(s, err))
				return nil
			}
		}

		r.finishWait(s)

		return nil
	}, "scheduled "+describe(s))

	return false
}

func (r *Runner) finishWait(s Step) {
	if r.done {
		return
	}

	r.waiting = false
	r.completeHead(s)
	r.progress()
}

func (r *Runner) tryWaitForSteps(s *WaitForStepsStep) bool {
	done, ok := s.satisfied(r.cache)
	if !ok {
		return false
	}

	r.startStep(s)

	for _, name := range s.names {
		r.cache.RemoveUnordered(name)
	}

	if err := s.finished.Populate(done); err != nil {
		r.fail(stepError(s, err))
		return false
	}

	r.completeHead(s)

	return true
}

func (r *Runner) completeIfFinished() {
	if r.done || r.waiting {
		return
	}

	if !r.cache.IsOrderedFinished() || r.cache.HasBlockingUnordered() {
		return
	}

	r.finish(nil)
}

// fail ends the scenario. The step a StepError names is reported as ended
// with its cause.
func (r *Runner) fail(err error) {
	var se *StepError
	if !r.done && errors.As(err, &se) {
		r.endStep(se.Step, se.Err)
	}

	r.finish(err)
}

func (r *Runner) finish(err error) {
	if r.done {
		return
	}

	r.done = true
	r.cache.CancelPeriodic()

	if err == nil {
		for _, c := range r.cache.UnorderedChecks() {
			c.Finish()
			if c.State() == CheckPassed {
				r.cache.MarkFinished(c.Name())
			}
		}
	}

	for _, s := range r.cache.FinalSteps() {
		r.startStep(s)
		finalErr := s.Execute()
		r.endStep(s, finalErr)

		if err == nil && finalErr != nil {
			err = stepError(s, finalErr)
		}
	}

	r.result = &Result{
		Outcome:       r.outcome(err),
		Err:           err,
		EndTime:       r.engine.CurrentTime(),
		FinishedSteps: r.cache.FinishedSteps(),
	}

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    HookPosScenarioEnd,
		Item:   r.result,
	})

	r.engine.Stop()
}

func (r *Runner) outcome(err error) Outcome {
	if err == nil {
		if r.cache.HasFailingSteps() {
			return OutcomeUnexpectedPass
		}

		return OutcomePassed
	}

	if step, ok := (&Result{Err: err}).FailedStep(); ok &&
		r.cache.IsFailingStep(step) {
		return OutcomeExpectedFailure
	}

	return OutcomeFailed
}

func (r *Runner) startStep(step Step) {
	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    HookPosStepStart,
		Item:   step,
	})
}

func (r *Runner) endStep(step Step, err error) {
	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    HookPosStepEnd,
		Item:   step,
		Detail: err,
	})
}
