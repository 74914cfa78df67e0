package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/simcheck/idgen"
	"github.com/sarchlab/simcheck/instrumentation/hooking"
	"github.com/sarchlab/simcheck/scenario"
	"github.com/sarchlab/simcheck/timing"
)

// Task kinds produced by the trace hook.
const (
	TaskKindStep  = "step"
	TaskKindEvent = "event"
)

// CollectTrace lets the tracer collect traces from a domain. A scenario
// Runner reports its steps, notifications, and verdict. An engine reports
// its events.
func CollectTrace(domain hooking.Hookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %T already has tracer %s",
				domain, reflect.TypeOf(tracer)))
		}
	}

	h := &traceHook{t: tracer, started: make(map[string]bool)}
	domain.AcceptHook(h)
}

// A traceHook is a hook that traces tasks. Hooks fire on the engine worker,
// so the hook needs no locking.
type traceHook struct {
	t       Tracer
	started map[string]bool
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case scenario.HookPosStepStart:
		h.startStep(ctx.Item.(scenario.Step))
	case scenario.HookPosStepEnd:
		err, _ := ctx.Detail.(error)
		h.endStep(ctx.Item.(scenario.Step), err)
	case scenario.HookPosNotification:
		h.t.AddMilestone(Milestone{
			ID:       idgen.Generate("milestone"),
			Kind:     MilestoneKindNotification,
			What:     fmt.Sprintf("%T", ctx.Item),
			Location: "router",
		})
	case scenario.HookPosScenarioEnd:
		result := ctx.Item.(*scenario.Result)
		h.t.AddMilestone(Milestone{
			ID:       idgen.Generate("milestone"),
			Kind:     MilestoneKindVerdict,
			What:     result.Outcome.String(),
			Location: "scenario",
		})
	case timing.HookPosBeforeEvent:
		h.t.StartTask(eventTask(ctx.Item.(*timing.Event)))
	case timing.HookPosAfterEvent:
		h.t.EndTask(eventTask(ctx.Item.(*timing.Event)))
	}
}

func (h *traceHook) startStep(step scenario.Step) {
	task := stepTask(step)
	h.started[task.ID] = true
	h.t.StartTask(task)
}

// endStep ends the step's task. Checks complete without having started, so
// they become tasks that start and end at the same time.
func (h *traceHook) endStep(step scenario.Step, err error) {
	task := stepTask(step)
	if !h.started[task.ID] {
		h.t.StartTask(task)
	}

	delete(h.started, task.ID)

	if err != nil {
		h.t.AddMilestone(Milestone{
			ID:       idgen.Generate("milestone"),
			TaskID:   task.ID,
			Kind:     MilestoneKindFailure,
			What:     err.Error(),
			Location: step.StepName(),
		})
	}

	h.t.EndTask(task)
}

func stepTask(step scenario.Step) Task {
	return Task{
		ID:       fmt.Sprintf("step-%p", step),
		Kind:     TaskKindStep,
		What:     fmt.Sprint(step),
		Location: step.StepName(),
		Detail:   step,
	}
}

func eventTask(evt *timing.Event) Task {
	what := evt.Description
	if what == "" {
		what = "event"
	}

	return Task{
		ID:       fmt.Sprintf("event-%p", evt),
		Kind:     TaskKindEvent,
		What:     what,
		Location: "engine",
		Detail:   evt,
	}
}
