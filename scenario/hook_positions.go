package scenario

import "github.com/sarchlab/simcheck/instrumentation/hooking"

// HookPosStepStart marks a step starting. Item is the Step.
var HookPosStepStart = &hooking.HookPos{Name: "StepStart"}

// HookPosStepEnd marks a step completing. Item is the Step and Detail is the
// error it failed with, or nil.
var HookPosStepEnd = &hooking.HookPos{Name: "StepEnd"}

// HookPosNotification marks a notification being buffered. Item is the
// notification.
var HookPosNotification = &hooking.HookPos{Name: "Notification"}

// HookPosScenarioEnd marks the verdict. Item is the *Result.
var HookPosScenarioEnd = &hooking.HookPos{Name: "ScenarioEnd"}
