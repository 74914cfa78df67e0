package timing

import (
	"context"
	"fmt"
	"sync"

	"github.com/sarchlab/simcheck/instrumentation/hooking"
)

// SerialEngine processes scheduled events sequentially in time order on a
// single worker goroutine.
type SerialEngine struct {
	*hooking.HookableBase

	lock    sync.Mutex
	cond    *sync.Cond
	changed chan struct{}

	now       VTimeInSec
	queue     *eventQueue
	nextSeq   uint64
	status    Status
	started   bool
	paused    bool
	executing *Event

	failureListeners []FailureListener
}

// NewSerialEngine creates a SerialEngine. Events can be scheduled right away;
// none runs before Start is called.
func NewSerialEngine() *SerialEngine {
	e := &SerialEngine{
		HookableBase: hooking.NewHookableBase(),
		queue:        newEventQueue(),
		changed:      make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.lock)

	return e
}

// Schedule registers an event to be handled in the future.
func (e *SerialEngine) Schedule(evt Event) {
	e.push(func(VTimeInSec) Event { return evt })
}

// DoNow runs the action at the current time.
func (e *SerialEngine) DoNow(action Action, description string) {
	e.push(func(now VTimeInSec) Event {
		return Event{Time: now, Action: action, Description: description}
	})
}

// DoIn runs the action delay seconds from now.
func (e *SerialEngine) DoIn(
	delay VTimeInSec,
	action Action,
	description string,
) {
	if delay < 0 {
		panic(fmt.Sprintf(
			"timing: negative delay %.10f for %q", delay, description))
	}

	e.push(func(now VTimeInSec) Event {
		return Event{Time: now + delay, Action: action, Description: description}
	})
}

// DoAt runs the action at the given time.
func (e *SerialEngine) DoAt(
	time VTimeInSec,
	action Action,
	description string,
) {
	e.push(func(VTimeInSec) Event {
		return Event{Time: time, Action: action, Description: description}
	})
}

// push reads the current time and enqueues the event atomically, so that
// relative scheduling from other goroutines never races the worker.
func (e *SerialEngine) push(makeEvent func(now VTimeInSec) Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.status != StatusRunning {
		return
	}

	evt := makeEvent(e.now)
	if evt.Time < e.now {
		panic(fmt.Sprintf(
			"timing: cannot schedule event in the past, evt %q @ %.10f, now %.10f",
			evt.Description, evt.Time, e.now,
		))
	}

	e.nextSeq++
	evt.seq = e.nextSeq
	e.queue.Push(&evt)

	e.cond.Signal()
	e.notifyLocked()
}

// Start launches the worker goroutine. Calling Start on a started or stopped
// engine has no effect.
func (e *SerialEngine) Start() {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.started || e.status != StatusRunning {
		return
	}

	e.started = true
	go e.run()
}

func (e *SerialEngine) run() {
	for {
		evt, ok := e.nextEvent()
		if !ok {
			return
		}

		e.execute(evt)
		e.finishEvent()
	}
}

func (e *SerialEngine) nextEvent() (*Event, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	for {
		if e.status != StatusRunning {
			e.status = StatusStopped
			e.notifyLocked()

			return nil, false
		}

		if !e.paused && e.queue.Len() > 0 {
			evt := e.queue.Pop()
			e.now = evt.Time
			e.executing = evt
			e.notifyLocked()

			return evt, true
		}

		e.cond.Wait()
	}
}

func (e *SerialEngine) execute(evt *Event) {
	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	err := runAction(evt)
	if err != nil {
		e.reportFailure(err)
	}

	hookCtx.Pos = HookPosAfterEvent
	hookCtx.Detail = err
	e.InvokeHook(hookCtx)
}

func runAction(evt *Event) (err error) {
	if evt.Action == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ActionError{
				Description: evt.Description,
				Time:        evt.Time,
				Err:         fmt.Errorf("panic: %v", r),
				Panic:       r,
			}
		}
	}()

	if actionErr := evt.Action(); actionErr != nil {
		return &ActionError{
			Description: evt.Description,
			Time:        evt.Time,
			Err:         actionErr,
		}
	}

	return nil
}

func (e *SerialEngine) reportFailure(err error) {
	e.lock.Lock()
	if e.status != StatusRunning {
		e.lock.Unlock()
		return
	}

	listeners := make([]FailureListener, len(e.failureListeners))
	copy(listeners, e.failureListeners)
	e.lock.Unlock()

	for _, l := range listeners {
		l(err)
	}
}

func (e *SerialEngine) finishEvent() {
	e.lock.Lock()
	e.executing = nil
	e.notifyLocked()
	e.lock.Unlock()
}

// notifyLocked wakes every goroutine blocked in WaitIdle or Wait.
func (e *SerialEngine) notifyLocked() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// Pause prevents the engine from dispatching more events until Continue is
// called.
func (e *SerialEngine) Pause() {
	e.lock.Lock()
	e.paused = true
	e.lock.Unlock()
}

// Continue resumes event processing after a Pause.
func (e *SerialEngine) Continue() {
	e.lock.Lock()
	defer e.lock.Unlock()

	if !e.paused {
		return
	}

	e.paused = false
	e.cond.Signal()
	e.notifyLocked()
}

// Stop asks the worker to stop once the action in flight completes. An engine
// that has never been started stops immediately.
func (e *SerialEngine) Stop() {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.status != StatusRunning {
		return
	}

	if e.started {
		e.status = StatusStopping
	} else {
		e.status = StatusStopped
	}

	e.cond.Signal()
	e.notifyLocked()
}

// IsStopped tells if the worker has stopped.
func (e *SerialEngine) IsStopped() bool {
	return e.Status() == StatusStopped
}

// Status returns the lifecycle status of the engine.
func (e *SerialEngine) Status() Status {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.status
}

// QueueSize returns the number of events that are queued but not executing.
func (e *SerialEngine) QueueSize() int {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.queue.Len()
}

// CurrentTime returns the time of the most recently dispatched event.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.now
}

// RegisterFailureListener registers a listener for failed actions.
func (e *SerialEngine) RegisterFailureListener(listener FailureListener) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.failureListeners = append(e.failureListeners, listener)
}

// WaitIdle blocks until the engine has nothing left to do or has stopped.
func (e *SerialEngine) WaitIdle(ctx context.Context) error {
	return e.waitFor(ctx, func() bool {
		if e.status == StatusStopped {
			return true
		}

		return e.started && e.queue.Len() == 0 && e.executing == nil
	})
}

// Wait blocks until the engine has stopped.
func (e *SerialEngine) Wait(ctx context.Context) error {
	return e.waitFor(ctx, func() bool {
		return e.status == StatusStopped
	})
}

func (e *SerialEngine) waitFor(ctx context.Context, done func() bool) error {
	for {
		e.lock.Lock()
		finished := done()
		changed := e.changed
		e.lock.Unlock()

		if finished {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var _ Engine = (*SerialEngine)(nil)
