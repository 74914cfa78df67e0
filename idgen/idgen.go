// Package idgen generates unique names for anonymously declared steps and
// execution types.
package idgen

import (
	"log"
	"strconv"
	"sync"

	"github.com/rs/xid"
)

// Generator produces unique identifiers scoped by a prefix.
type Generator interface {
	// Generate returns an identifier that has not been returned before for
	// the same prefix.
	Generate(prefix string) string
}

var (
	defaultLock      sync.Mutex
	defaultGenerator Generator
	defaultUsed      bool
)

// Default returns the process-wide generator. Unless UseParallel has been
// called, it is sequential and therefore deterministic across runs.
func Default() Generator {
	defaultLock.Lock()
	defer defaultLock.Unlock()

	if defaultGenerator == nil {
		defaultGenerator = NewSequential()
	}

	defaultUsed = true

	return defaultGenerator
}

// Generate is a shortcut for Default().Generate(prefix).
func Generate(prefix string) string {
	return Default().Generate(prefix)
}

// UseParallel switches the default generator to globally unique xid based
// identifiers. The identifiers are no longer reproducible.
func UseParallel() {
	defaultLock.Lock()
	defer defaultLock.Unlock()

	if defaultUsed {
		log.Panic("cannot change id generator type after using it")
	}

	defaultGenerator = parallelGenerator{}
}

// Reset restores a fresh sequential default generator. Tests call it to get
// stable names.
func Reset() {
	defaultLock.Lock()
	defer defaultLock.Unlock()

	defaultGenerator = NewSequential()
	defaultUsed = false
}

// NewSequential returns a generator that numbers identifiers per prefix,
// starting from 1.
func NewSequential() Generator {
	return &sequentialGenerator{next: make(map[string]uint64)}
}

type sequentialGenerator struct {
	lock sync.Mutex
	next map[string]uint64
}

func (g *sequentialGenerator) Generate(prefix string) string {
	g.lock.Lock()
	g.next[prefix]++
	n := g.next[prefix]
	g.lock.Unlock()

	return prefix + "-" + strconv.FormatUint(n, 10)
}

type parallelGenerator struct{}

func (parallelGenerator) Generate(prefix string) string {
	return prefix + "-" + xid.New().String()
}
