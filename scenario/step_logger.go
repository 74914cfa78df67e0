package scenario

import (
	"log"

	"github.com/sarchlab/simcheck/instrumentation/hooking"
)

// StepLogger is a hook that prints the progress of a scenario.
type StepLogger struct {
	*log.Logger
}

// NewStepLogger returns a new StepLogger which writes into the logger.
func NewStepLogger(logger *log.Logger) *StepLogger {
	return &StepLogger{Logger: logger}
}

// Func writes the step or verdict into the logger.
func (h *StepLogger) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosStepStart:
		h.Printf("step %s started", describe(ctx.Item.(Step)))
	case HookPosStepEnd:
		if err, ok := ctx.Detail.(error); ok && err != nil {
			h.Printf("step %s failed: %v", describe(ctx.Item.(Step)), err)
			return
		}
		h.Printf("step %s finished", describe(ctx.Item.(Step)))
	case HookPosNotification:
		h.Printf("notification %T %+v", ctx.Item, ctx.Item)
	case HookPosScenarioEnd:
		h.Printf("scenario %s", ctx.Item.(*Result))
	}
}
