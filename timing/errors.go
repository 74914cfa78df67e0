package timing

import "fmt"

// ActionError wraps the failure of an event's action.
type ActionError struct {
	Description string
	Time        VTimeInSec
	Err         error

	// Panic holds the recovered value if the action panicked.
	Panic any
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("timing: action %q @ %.10f failed: %v",
		e.Description, e.Time, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
