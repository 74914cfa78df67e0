package timing

import (
	"log"

	"github.com/sarchlab/simcheck/instrumentation/hooking"
)

// EventLogger is a hook that prints every executed event.
type EventLogger struct {
	*log.Logger
}

// NewEventLogger returns a new EventLogger which will write into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{Logger: logger}
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	evt, ok := ctx.Item.(*Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosBeforeEvent:
		h.Printf("%.10f, %s", evt.Time, evt.Description)
	case HookPosAfterEvent:
		if err, failed := ctx.Detail.(error); failed && err != nil {
			h.Printf("%.10f, %s failed: %v", evt.Time, evt.Description, err)
		}
	}
}
