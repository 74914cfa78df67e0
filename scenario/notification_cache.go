package scenario

import (
	"reflect"

	"github.com/sarchlab/simcheck/notify"
	"github.com/sarchlab/simcheck/timing"
)

// PendingNotification is a buffered notification waiting for a step.
type PendingNotification struct {
	Notification any
	Time         timing.VTimeInSec
	Generation   int

	// offered is set once every live unordered check has declined it.
	offered bool
}

// NotificationCache buffers the notifications that some declared check
// listens for, so that no step misses a notification that arrived before it
// became current.
//
// Every unordered activation starts a new generation. A notification is only
// offered to the unordered checks activated in or before its generation.
type NotificationCache struct {
	known      []reflect.Type
	pending    []*PendingNotification
	generation int
}

// NewNotificationCache creates an empty cache.
func NewNotificationCache() *NotificationCache {
	return &NotificationCache{}
}

// AddKnownNotification makes the cache buffer notifications assignable to t.
func (c *NotificationCache) AddKnownNotification(t reflect.Type) {
	for _, k := range c.known {
		if k == t {
			return
		}
	}

	c.known = append(c.known, t)
}

// KnownNotifications returns the types the cache buffers.
func (c *NotificationCache) KnownNotifications() []reflect.Type {
	return append([]reflect.Type(nil), c.known...)
}

// IsKnown tells if n would be buffered.
func (c *NotificationCache) IsKnown(n any) bool {
	if n == nil {
		return false
	}

	nt := reflect.TypeOf(n)
	for _, k := range c.known {
		if notify.Matches(nt, k) {
			return true
		}
	}

	return false
}

// Add buffers n if some check listens for it and reports if it did.
func (c *NotificationCache) Add(n any, at timing.VTimeInSec) bool {
	if !c.IsKnown(n) {
		return false
	}

	c.pending = append(c.pending, &PendingNotification{
		Notification: n,
		Time:         at,
		Generation:   c.generation,
	})

	return true
}

// Pending returns the buffered notifications in arrival order.
func (c *NotificationCache) Pending() []*PendingNotification {
	return append([]*PendingNotification(nil), c.pending...)
}

// Len returns the number of buffered notifications.
func (c *NotificationCache) Len() int {
	return len(c.pending)
}

// Consume removes p from the buffer.
func (c *NotificationCache) Consume(p *PendingNotification) {
	for i, q := range c.pending {
		if q == p {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return
		}
	}
}

// ResetUnorderedNotification starts a new generation.
func (c *NotificationCache) ResetUnorderedNotification() {
	c.generation++
}

// Generation returns the current generation.
func (c *NotificationCache) Generation() int {
	return c.generation
}

// Clear drops every buffered notification and forgets the known types.
func (c *NotificationCache) Clear() {
	c.known = nil
	c.pending = nil
	c.generation = 0
}
