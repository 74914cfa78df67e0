package timing

import "github.com/sarchlab/simcheck/instrumentation/hooking"

// HookPosBeforeEvent is a hook position that triggers before handling an
// event. The hook item is the *Event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
// The hook detail is the action error, if any.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}
