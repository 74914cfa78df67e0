package scenario

import "fmt"

// StepCache holds the steps of one scenario.
//
// It is filled while the scenario is authored and then driven by the Runner
// on the engine worker.
type StepCache struct {
	nextOrder int

	ordered []Step
	cursor  int

	unordered      []*ActiveCheck
	unorderedIndex map[string]*ActiveCheck

	executes     []*ExecuteStep
	executeNames map[string]bool

	final    []*ExecuteStep
	failing  []Step
	periodic []*PeriodicExecuteStep

	finished      map[string]bool
	finishedOrder []string
}

// NewStepCache creates an empty cache.
func NewStepCache() *StepCache {
	return &StepCache{
		unorderedIndex: make(map[string]*ActiveCheck),
		executeNames:   make(map[string]bool),
		finished:       make(map[string]bool),
	}
}

// NextStepOrder returns the order for the next declared step.
func (c *StepCache) NextStepOrder() int {
	c.nextOrder++
	return c.nextOrder
}

// AddOrdered appends a step to the ordered sequence.
func (c *StepCache) AddOrdered(step Step) {
	c.ordered = append(c.ordered, step)
}

// OrderedSteps returns every ordered step, including the completed ones.
func (c *StepCache) OrderedSteps() []Step {
	return append([]Step(nil), c.ordered...)
}

// Head returns the current ordered step, or nil when all have completed.
func (c *StepCache) Head() Step {
	if c.cursor >= len(c.ordered) {
		return nil
	}

	return c.ordered[c.cursor]
}

// Advance completes the current ordered step.
func (c *StepCache) Advance() {
	if c.cursor < len(c.ordered) {
		c.cursor++
	}
}

// IsOrderedFinished tells if every ordered step has completed.
func (c *StepCache) IsOrderedFinished() bool {
	return c.cursor >= len(c.ordered)
}

// IsAwaited tells if some ordered check that has not completed yet accepts
// the type of n.
func (c *StepCache) IsAwaited(n any) bool {
	for _, step := range c.ordered[c.cursor:] {
		if check, ok := step.(*CheckStep); ok && check.Accepts(n) {
			return true
		}
	}

	return false
}

// AddUnordered registers an active check under name.
func (c *StepCache) AddUnordered(name string, check *ActiveCheck) error {
	if err := c.checkNameFree(name); err != nil {
		return err
	}

	c.unordered = append(c.unordered, check)
	c.unorderedIndex[name] = check

	return nil
}

// AddUnorderedExecute registers an execute step that runs outside the
// ordered sequence and finishes under name.
func (c *StepCache) AddUnorderedExecute(name string, step *ExecuteStep) error {
	if err := c.checkNameFree(name); err != nil {
		return err
	}

	c.executes = append(c.executes, step)
	c.executeNames[name] = true

	return nil
}

// TakeUnorderedExecutes returns the unordered execute steps that have not
// run yet and forgets them.
func (c *StepCache) TakeUnorderedExecutes() []*ExecuteStep {
	executes := c.executes
	c.executes = nil

	return executes
}

func (c *StepCache) checkNameFree(name string) error {
	_, found := c.unorderedIndex[name]
	if found || c.executeNames[name] {
		return fmt.Errorf("%w: %q", ErrDuplicateStepName, name)
	}

	return nil
}

// Unordered returns the active check registered under name.
func (c *StepCache) Unordered(name string) (*ActiveCheck, bool) {
	check, found := c.unorderedIndex[name]
	return check, found
}

// RemoveUnordered unregisters the check under name and reports if there was
// one.
func (c *StepCache) RemoveUnordered(name string) bool {
	check, found := c.unorderedIndex[name]
	if !found {
		return false
	}

	delete(c.unorderedIndex, name)
	for i, u := range c.unordered {
		if u == check {
			c.unordered = append(c.unordered[:i:i], c.unordered[i+1:]...)
			break
		}
	}

	return true
}

// UnorderedChecks returns the registered checks in activation order.
func (c *StepCache) UnorderedChecks() []*ActiveCheck {
	return append([]*ActiveCheck(nil), c.unordered...)
}

// HasBlockingUnordered tells if some registered check must still finish
// before the scenario can complete.
func (c *StepCache) HasBlockingUnordered() bool {
	for _, u := range c.unordered {
		if u.IsBlocking() {
			return true
		}
	}

	return false
}

// AddFinalStep adds a step that runs when the scenario ends.
func (c *StepCache) AddFinalStep(step *ExecuteStep) {
	c.final = append(c.final, step)
}

// FinalSteps returns the steps that run when the scenario ends.
func (c *StepCache) FinalSteps() []*ExecuteStep {
	return append([]*ExecuteStep(nil), c.final...)
}

// AddFailingStep marks step as expected to fail.
func (c *StepCache) AddFailingStep(step Step) {
	c.failing = append(c.failing, step)
}

// RemoveFailingStep drops the mark set by AddFailingStep.
func (c *StepCache) RemoveFailingStep(step Step) {
	for i, s := range c.failing {
		if s == step {
			c.failing = append(c.failing[:i:i], c.failing[i+1:]...)
			return
		}
	}
}

// IsFailingStep tells if step is expected to fail.
func (c *StepCache) IsFailingStep(step Step) bool {
	for _, s := range c.failing {
		if s == step {
			return true
		}
	}

	return false
}

// HasFailingSteps tells if some step is expected to fail.
func (c *StepCache) HasFailingSteps() bool {
	return len(c.failing) > 0
}

// AddPeriodic tracks a started periodic step.
func (c *StepCache) AddPeriodic(step *PeriodicExecuteStep) {
	c.periodic = append(c.periodic, step)
}

// CancelPeriodic stops every tracked periodic step.
func (c *StepCache) CancelPeriodic() {
	for _, p := range c.periodic {
		p.Cancel()
	}
}

// MarkFinished records that the unordered step name completed.
func (c *StepCache) MarkFinished(name string) {
	if c.finished[name] {
		return
	}

	c.finished[name] = true
	c.finishedOrder = append(c.finishedOrder, name)
}

// IsFinished tells if the unordered step name completed.
func (c *StepCache) IsFinished(name string) bool {
	return c.finished[name]
}

// FinishedSteps returns the names of completed unordered steps in completion
// order.
func (c *StepCache) FinishedSteps() []string {
	return append([]string(nil), c.finishedOrder...)
}

// Reset returns the cache to its freshly created state.
func (c *StepCache) Reset() {
	*c = *NewStepCache()
}
