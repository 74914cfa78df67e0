// Package notify provides the publish/subscribe bus that simulations use to
// announce what happened.
//
// A Router belongs to one scenario run. It is created with the run and torn
// down with ClearAllHandlers afterwards, so no subscription leaks from one
// run into the next.
package notify

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Handler receives a broadcast notification.
type Handler func(notification any)

// SubscriptionID identifies a registered handler.
type SubscriptionID uint64

type subscription struct {
	id               SubscriptionID
	notificationType reflect.Type
	handler          Handler
	active           atomic.Bool
}

// Router delivers notifications to the handlers subscribed to their type.
type Router struct {
	lock          sync.RWMutex
	nextID        SubscriptionID
	subscriptions []*subscription
}

// NewRouter creates a Router without handlers.
func NewRouter() *Router {
	return &Router{}
}

// Matches tells if a notification of type notificationType is delivered to a
// handler registered for handlerType. Interface handler types match every
// implementation, which is how a handler subscribes to a capability.
func Matches(notificationType, handlerType reflect.Type) bool {
	return notificationType.AssignableTo(handlerType)
}

// Register subscribes the handler to notifications assignable to t.
func (r *Router) Register(t reflect.Type, handler Handler) SubscriptionID {
	if t == nil {
		panic("notify: cannot register a handler for a nil type")
	}

	if handler == nil {
		panic("notify: cannot register a nil handler")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.nextID++
	s := &subscription{
		id:               r.nextID,
		notificationType: t,
		handler:          handler,
	}
	s.active.Store(true)
	r.subscriptions = append(r.subscriptions, s)

	return s.id
}

// Subscribe registers a typed handler. N may be a concrete notification type
// or an interface that several notification types implement.
func Subscribe[N any](r *Router, handler func(N)) SubscriptionID {
	return r.Register(reflect.TypeFor[N](), func(notification any) {
		handler(notification.(N))
	})
}

// Unregister removes a handler. It returns false if the id is unknown. A
// handler removed during a broadcast does not receive the rest of it.
func (r *Router) Unregister(id SubscriptionID) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	for i, s := range r.subscriptions {
		if s.id != id {
			continue
		}

		s.active.Store(false)
		r.subscriptions = append(
			r.subscriptions[:i:i], r.subscriptions[i+1:]...)

		return true
	}

	return false
}

// ClearAllHandlers removes every handler.
func (r *Router) ClearAllHandlers() {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, s := range r.subscriptions {
		s.active.Store(false)
	}

	r.subscriptions = nil
}

// NumHandlers returns the number of registered handlers.
func (r *Router) NumHandlers() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.subscriptions)
}

// Broadcast delivers the notification synchronously, on the calling
// goroutine, to every matching handler in registration order. Handlers
// registered during the broadcast do not receive it.
func (r *Router) Broadcast(notification any) {
	if notification == nil {
		return
	}

	r.lock.RLock()
	snapshot := r.subscriptions
	r.lock.RUnlock()

	notificationType := reflect.TypeOf(notification)
	for _, s := range snapshot {
		if !s.active.Load() {
			continue
		}

		if Matches(notificationType, s.notificationType) {
			s.handler(notification)
		}
	}
}
