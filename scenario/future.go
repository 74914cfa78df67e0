package scenario

// StepFuture is a value that becomes available while the scenario runs. A
// step that produces a value populates it; later steps read it.
type StepFuture[T any] interface {
	// Get returns the value, or ErrFutureNotPopulated.
	Get() (T, error)

	// HasBeenPopulated tells if the value is available.
	HasBeenPopulated() bool

	// OnPopulated calls fn with the value once it is available, right away
	// if it already is.
	OnPopulated(fn func(T))
}

// MutableStepFuture is a StepFuture that can be populated exactly once.
//
// Futures are populated and read on the engine worker, so they carry no lock.
type MutableStepFuture[T any] struct {
	populated bool
	value     T
	listeners []func(T)
}

// NewMutableStepFuture creates an empty future.
func NewMutableStepFuture[T any]() *MutableStepFuture[T] {
	return &MutableStepFuture[T]{}
}

// FutureOf returns a future that already holds v.
func FutureOf[T any](v T) StepFuture[T] {
	return &MutableStepFuture[T]{populated: true, value: v}
}

// Populate sets the value and notifies dependants.
func (f *MutableStepFuture[T]) Populate(v T) error {
	if f.populated {
		return ErrFutureAlreadyPopulated
	}

	f.populated = true
	f.value = v

	listeners := f.listeners
	f.listeners = nil
	for _, l := range listeners {
		l(v)
	}

	return nil
}

// Get returns the value, or ErrFutureNotPopulated.
func (f *MutableStepFuture[T]) Get() (T, error) {
	if !f.populated {
		var zero T
		return zero, ErrFutureNotPopulated
	}

	return f.value, nil
}

// HasBeenPopulated tells if the value is available.
func (f *MutableStepFuture[T]) HasBeenPopulated() bool {
	return f.populated
}

// OnPopulated calls fn with the value once it is available.
func (f *MutableStepFuture[T]) OnPopulated(fn func(T)) {
	if f.populated {
		fn(f.value)
		return
	}

	f.listeners = append(f.listeners, fn)
}

// Map derives a future whose value is fn applied to the value of src. The
// derived future is populated when src is.
func Map[T, U any](src StepFuture[T], fn func(T) U) StepFuture[U] {
	derived := NewMutableStepFuture[U]()
	src.OnPopulated(func(v T) {
		_ = derived.Populate(fn(v))
	})

	return derived
}
