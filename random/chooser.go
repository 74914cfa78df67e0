package random

import (
	"errors"
	"fmt"
)

// Errors returned when setting probabilities.
var (
	ErrDefaultOutcome        = errors.New("random: cannot set the probability of the default outcome")
	ErrNegativeProbability   = errors.New("random: probability must not be negative")
	ErrProbabilityExceedsOne = errors.New("random: sum of probabilities exceeds 1")
)

const probabilityTolerance = 1e-6

// MutableAbsoluteProbabilityChooser picks outcomes with fixed probabilities,
// falling back to a default outcome for the remaining probability mass.
type MutableAbsoluteProbabilityChooser[T comparable] struct {
	source         Source
	defaultOutcome T
	outcomes       []T
	probabilities  map[T]float64
}

// NewMutableAbsoluteProbabilityChooser creates a chooser that returns
// defaultOutcome until probabilities are set.
func NewMutableAbsoluteProbabilityChooser[T comparable](
	source Source,
	defaultOutcome T,
) *MutableAbsoluteProbabilityChooser[T] {
	return &MutableAbsoluteProbabilityChooser[T]{
		source:         source,
		defaultOutcome: defaultOutcome,
		probabilities:  make(map[T]float64),
	}
}

// SetProbability sets, or with zero removes, the probability of outcome.
func (c *MutableAbsoluteProbabilityChooser[T]) SetProbability(
	outcome T,
	probability float64,
) error {
	if outcome == c.defaultOutcome {
		return fmt.Errorf("%w: %v", ErrDefaultOutcome, outcome)
	}

	if probability < 0 {
		return fmt.Errorf("%w: %v for %v", ErrNegativeProbability, probability, outcome)
	}

	if probability == 0 {
		c.remove(outcome)
		return nil
	}

	total := probability - c.probabilities[outcome]
	for _, o := range c.outcomes {
		total += c.probabilities[o]
	}

	if total > 1+probabilityTolerance {
		return fmt.Errorf("%w: %v", ErrProbabilityExceedsOne, total)
	}

	if _, found := c.probabilities[outcome]; !found {
		c.outcomes = append(c.outcomes, outcome)
	}

	c.probabilities[outcome] = probability

	return nil
}

func (c *MutableAbsoluteProbabilityChooser[T]) remove(outcome T) {
	if _, found := c.probabilities[outcome]; !found {
		return
	}

	delete(c.probabilities, outcome)
	for i, o := range c.outcomes {
		if o == outcome {
			c.outcomes = append(c.outcomes[:i], c.outcomes[i+1:]...)
			return
		}
	}
}

// Clear removes every probability, so only the default outcome is chosen.
func (c *MutableAbsoluteProbabilityChooser[T]) Clear() {
	c.outcomes = nil
	clear(c.probabilities)
}

// Choose picks an outcome. Outcomes are considered in the order their
// probabilities were first set.
func (c *MutableAbsoluteProbabilityChooser[T]) Choose() T {
	r := c.source.Float64()

	sum := 0.0
	for _, o := range c.outcomes {
		sum += c.probabilities[o]
		// Strict so that a draw of 0 never picks a zero-width outcome.
		if sum > r {
			return o
		}
	}

	return c.defaultOutcome
}
