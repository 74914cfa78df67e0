// Package random provides seeded randomness for reproducible simulations.
package random

import (
	"math/rand"
	"sync"
)

// Source provides uniformly distributed numbers in [0, 1).
type Source interface {
	Float64() float64
}

// RepeatableRandom is a seeded random source. The same seed always yields the
// same sequence.
type RepeatableRandom struct {
	lock sync.Mutex
	rng  *rand.Rand
}

// NewRepeatableRandom creates a source seeded with seed.
func NewRepeatableRandom(seed int64) *RepeatableRandom {
	return &RepeatableRandom{rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns a number in [0, 1).
func (r *RepeatableRandom) Float64() float64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.rng.Float64()
}

// Intn returns a number in [0, n).
func (r *RepeatableRandom) Intn(n int) int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.rng.Intn(n)
}

// ExpFloat64 returns an exponentially distributed number with rate 1.
func (r *RepeatableRandom) ExpFloat64() float64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.rng.ExpFloat64()
}

var (
	defaultLock   sync.Mutex
	defaultRandom = NewRepeatableRandom(1)
)

// Initialise reseeds the default source.
func Initialise(seed int64) {
	defaultLock.Lock()
	defer defaultLock.Unlock()

	defaultRandom = NewRepeatableRandom(seed)
}

// Default returns the default source.
func Default() *RepeatableRandom {
	defaultLock.Lock()
	defer defaultLock.Unlock()

	return defaultRandom
}
