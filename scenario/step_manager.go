package scenario

import (
	"runtime"
	"strings"
	"time"

	"github.com/sarchlab/simcheck/idgen"
	"github.com/sarchlab/simcheck/notify"
	"github.com/sarchlab/simcheck/timing"
)

// SimulationAPI is what a scenario needs from the simulation under test.
type SimulationAPI interface {
	// Scheduler returns the engine that drives the simulation.
	Scheduler() timing.Engine

	// Router returns the notification router of the run.
	Router() *notify.Router

	// TimeUnit is the real-world length of one simulated second, used when
	// presenting times.
	TimeUnit() time.Duration
}

// StepManager is the authoring interface of a scenario. It names and orders
// steps and places them in the StepCache.
type StepManager struct {
	cache         *StepCache
	simulation    SimulationAPI
	notifications *NotificationCache
}

// NewStepManager creates a StepManager that fills cache.
func NewStepManager(
	cache *StepCache,
	simulation SimulationAPI,
	notifications *NotificationCache,
) *StepManager {
	return &StepManager{
		cache:         cache,
		simulation:    simulation,
		notifications: notifications,
	}
}

// Simulation returns the simulation under test.
func (m *StepManager) Simulation() SimulationAPI {
	return m.simulation
}

// Cache returns the step cache being filled.
func (m *StepManager) Cache() *StepCache {
	return m.cache
}

// Notifications returns the notification cache of the scenario.
func (m *StepManager) Notifications() *NotificationCache {
	return m.notifications
}

// SchedulerSupplier returns a supplier of the simulation scheduler.
func (m *StepManager) SchedulerSupplier() SchedulerSupplier {
	return func() timing.EventScheduler {
		return m.simulation.Scheduler()
	}
}

// Add appends an ordered step.
func (m *StepManager) Add(step Step) {
	m.identify(step, "")
	m.cache.AddOrdered(step)
}

// AddExecute appends an ordered execute step.
func (m *StepManager) AddExecute(step *ExecuteStep) {
	m.Add(step)
}

// AddExecuteWithType appends an execute step with the given semantics. A
// periodic step starts when the ordered sequence reaches it.
func (m *StepManager) AddExecuteWithType(
	step *ExecuteStep,
	t ExecuteStepExecutionType,
) error {
	if t.IsOrdered() {
		m.Add(step)
		return nil
	}

	scheduler, err := t.Scheduler()
	if err != nil {
		return err
	}

	period, err := t.Period()
	if err != nil {
		return err
	}

	periodic := NewPeriodicExecuteStep(step, scheduler, period)
	m.identify(step, "")
	m.identify(periodic, "")
	m.cache.AddOrdered(periodic)

	return nil
}

// AddCheck declares a check with the given semantics. An ordered check is
// appended to the ordered sequence. Any other check is activated when the
// ordered sequence reaches the point of declaration.
func (m *StepManager) AddCheck(check *CheckStep, t CheckStepExecutionType) {
	m.notifications.AddKnownNotification(check.NotificationType())

	if t.IsFailingStep() {
		m.cache.AddFailingStep(check)
	}

	if t.IsOrdered() {
		m.identify(check, t.Name())
		m.cache.AddOrdered(check)
		return
	}

	decl := &UnorderedDeclaration{check: check, executionType: t}
	m.identify(decl, t.Name())
	check.stepBase = decl.stepBase
	m.cache.AddOrdered(decl)
}

// AddUnorderedCheck registers an unordered check that is active from the
// start of the scenario.
func (m *StepManager) AddUnorderedCheck(name string, check *CheckStep) error {
	m.notifications.AddKnownNotification(check.NotificationType())

	active := NewActiveCheck(name, check)
	m.identify(active, name)
	check.stepBase = active.stepBase

	return m.cache.AddUnordered(name, active)
}

// AddUnorderedExecute registers an execute step that runs when the scenario
// starts, outside the ordered sequence. Once it has run it counts as finished
// for AddWaitForAnyOf and AddWaitForAll.
func (m *StepManager) AddUnorderedExecute(name string, step *ExecuteStep) error {
	m.identify(step, name)
	return m.cache.AddUnorderedExecute(name, step)
}

// AddFailureCheck appends a step that waits for a simulation action to fail.
func (m *StepManager) AddFailureCheck(step *FailureCheckStep) {
	m.Add(step)
}

// Activate turns a declaration reached by the ordered sequence into a
// registered active check.
func (m *StepManager) Activate(
	decl *UnorderedDeclaration,
	now timing.VTimeInSec,
) (*ActiveCheck, error) {
	active, err := decl.resolve(now)
	if err != nil {
		return nil, stepError(decl, err)
	}

	m.notifications.ResetUnorderedNotification()
	active.generation = m.notifications.Generation()

	if decl.executionType.IsFailingStep() {
		m.cache.RemoveFailingStep(decl.check)
		m.cache.AddFailingStep(active)
	}

	err = m.cache.AddUnordered(active.Name(), active)
	if err != nil {
		return nil, stepError(decl, err)
	}

	return active, nil
}

// AddWaitForAnyOf appends a step that waits until one of the named unordered
// steps finishes and returns the future of the names that finished.
func (m *StepManager) AddWaitForAnyOf(names ...string) StepFuture[[]string] {
	step := NewWaitForAnyStep(names...)
	m.Add(step)

	return step.Finished()
}

// AddWaitForAll appends a step that waits until all the named unordered
// steps finish.
func (m *StepManager) AddWaitForAll(names ...string) StepFuture[[]string] {
	step := NewWaitForAllStep(names...)
	m.Add(step)

	return step.Finished()
}

// AddFinalStep adds a step that runs when the scenario ends, whatever its
// outcome.
func (m *StepManager) AddFinalStep(step *ExecuteStep) {
	m.identify(step, "")
	m.cache.AddFinalStep(step)
}

// AddFailingStep marks an already declared step as expected to fail.
func (m *StepManager) AddFailingStep(step Step) {
	m.cache.AddFailingStep(step)
}

func (m *StepManager) identify(step Step, name string) {
	b := step.base()
	if b.stepOrder != 0 {
		return
	}

	b.stepName = callerStepName()
	b.stepOrder = m.cache.NextStepOrder()
	b.name = name
}

const scenarioPackage = "github.com/sarchlab/simcheck/scenario."

// callerStepName names a step after the first function outside this package
// on the call stack.
func callerStepName() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.HasPrefix(frame.Function, scenarioPackage) {
			return shortFunctionName(frame.Function)
		}

		if !more {
			break
		}
	}

	return idgen.Generate("step")
}

// shortFunctionName turns "example.com/pkg.(*T).Method.func1" into "Method".
func shortFunctionName(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}

	fn = strings.ReplaceAll(fn, "[...]", "")
	parts := strings.Split(fn, ".")
	for i := len(parts) - 1; i > 0; i-- {
		p := parts[i]
		if p == "" || strings.HasPrefix(p, "func") || isDigits(p) {
			continue
		}

		return p
	}

	return fn
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return s != ""
}
