// Package hooking lets observers attach to the engine and the scenario runner
// without the observed code knowing who is listening.
package hooking

import "sync"

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	// Domain is the hookable object that is raising this hook.
	Domain Hookable

	// Pos identifies the lifecycle stage the hook is firing from.
	Pos *HookPos

	// Item carries the primary subject of the hook (event, step,
	// notification).
	Item any

	// Detail holds optional auxiliary data; hook sites may leave it nil.
	Detail any
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook. Hooks cannot be removed, so disable work
	// inside the hook if it should stop reacting.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook

	// InvokeHook triggers the registered Hooks.
	InvokeHook(ctx HookCtx)
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
//
// Hooks are usually attached before a run starts, but a monitor may attach
// one while the engine worker is invoking hooks, so the list is guarded.
type HookableBase struct {
	lock     sync.RWMutex
	hookList []Hook
}

// NewHookableBase creates a HookableBase object.
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.hookList = make([]Hook, 0)

	return h
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.hookList)
}

// Hooks returns a copy of all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	h.lock.RLock()
	defer h.lock.RUnlock()

	hooks := make([]Hook, len(h.hookList))
	copy(hooks, h.hookList)

	return hooks
}

// AcceptHook registers a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); isFunc {
		// Funcs are not comparable.
		return
	}

	for _, registered := range h.hookList {
		if registered == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the registered Hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.lock.RLock()
	hooks := h.hookList
	h.lock.RUnlock()

	for _, hook := range hooks {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
