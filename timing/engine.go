package timing

import (
	"context"

	"github.com/sarchlab/simcheck/instrumentation/hooking"
)

// An Engine is a unit that keeps the discrete event simulation running.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Start launches the worker that executes events.
	Start()

	// Pause stops dispatching events until Continue is called. The event in
	// flight, if any, is not interrupted.
	Pause()

	// Continue resumes a paused engine.
	Continue()

	// Stop requests the engine to stop. It takes effect once the action in
	// flight completes. Events submitted afterwards are silently dropped.
	Stop()

	// IsStopped tells if the engine has fully stopped.
	IsStopped() bool

	// Status returns the lifecycle status of the engine.
	Status() Status

	// QueueSize returns the number of events waiting to be executed. The
	// event being executed is not counted.
	QueueSize() int

	// RegisterFailureListener registers a listener that is told about
	// failed actions.
	RegisterFailureListener(listener FailureListener)

	// WaitIdle blocks until no event is queued or executing, or the engine
	// has stopped.
	WaitIdle(ctx context.Context) error

	// Wait blocks until the engine has stopped.
	Wait(ctx context.Context) error
}
