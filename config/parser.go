package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sarchlab/simcheck/timing"
)

// Parsing failures.
var (
	ErrMissingKey   = errors.New("config: key not defined")
	ErrInvalidValue = errors.New("config: invalid value")
)

// StrictValueParser converts a configured value to typed values. Every
// accessor fails if the value is absent or malformed.
type StrictValueParser struct {
	key     string
	value   string
	defined bool
}

// NewStrictValueParser creates a parser for a defined value.
func NewStrictValueParser(value string) StrictValueParser {
	return StrictValueParser{value: value, defined: true}
}

func (p StrictValueParser) raw() (string, error) {
	if !p.defined {
		return "", fmt.Errorf("%w: %q", ErrMissingKey, p.key)
	}

	return strings.TrimSpace(p.value), nil
}

func (p StrictValueParser) invalid(kind string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %q=%q is not %s: %v",
			ErrInvalidValue, p.key, p.value, kind, err)
	}

	return fmt.Errorf("%w: %q=%q is not %s", ErrInvalidValue, p.key, p.value, kind)
}

// AsString returns the value unchanged.
func (p StrictValueParser) AsString() (string, error) {
	if !p.defined {
		return "", fmt.Errorf("%w: %q", ErrMissingKey, p.key)
	}

	return p.value, nil
}

// AsBool accepts "true" or "false" in any letter case.
func (p StrictValueParser) AsBool() (bool, error) {
	v, err := p.raw()
	if err != nil {
		return false, err
	}

	switch strings.ToLower(v) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, p.invalid("a boolean", nil)
	}
}

// AsInt accepts a decimal integer, "max" or "min".
func (p StrictValueParser) AsInt() (int, error) {
	v, err := p.AsInt64()
	if err != nil {
		return 0, err
	}

	if v > math.MaxInt || v < math.MinInt {
		return 0, p.invalid("an int", strconv.ErrRange)
	}

	return int(v), nil
}

// AsInt32 is AsInt restricted to 32 bits.
func (p StrictValueParser) AsInt32() (int32, error) {
	v, err := p.raw()
	if err != nil {
		return 0, err
	}

	switch strings.ToLower(v) {
	case "max":
		return math.MaxInt32, nil
	case "min":
		return math.MinInt32, nil
	}

	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, p.invalid("a 32-bit integer", err)
	}

	return int32(n), nil
}

// AsInt64 accepts a decimal integer, "max" or "min".
func (p StrictValueParser) AsInt64() (int64, error) {
	v, err := p.raw()
	if err != nil {
		return 0, err
	}

	switch strings.ToLower(v) {
	case "max":
		return math.MaxInt64, nil
	case "min":
		return math.MinInt64, nil
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, p.invalid("an integer", err)
	}

	return n, nil
}

// AsFloat64 accepts a decimal or exponent number, "max" or "min".
func (p StrictValueParser) AsFloat64() (float64, error) {
	v, err := p.raw()
	if err != nil {
		return 0, err
	}

	switch strings.ToLower(v) {
	case "max":
		return math.MaxFloat64, nil
	case "min":
		return -math.MaxFloat64, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, p.invalid("a number", err)
	}

	return f, nil
}

// AsDuration accepts a Go duration such as "1.5s" or "300ms".
func (p StrictValueParser) AsDuration() (time.Duration, error) {
	v, err := p.raw()
	if err != nil {
		return 0, err
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, p.invalid("a duration", err)
	}

	return d, nil
}

// AsTime reads a number of units and converts it to simulated seconds.
func (p StrictValueParser) AsTime(unit time.Duration) (timing.VTimeInSec, error) {
	f, err := p.AsFloat64()
	if err != nil {
		return 0, err
	}

	return timing.VTimeInSec(f * unit.Seconds()), nil
}

// AsStringList splits the value on commas and trims each element.
func (p StrictValueParser) AsStringList() ([]string, error) {
	v, err := p.raw()
	if err != nil {
		return nil, err
	}

	if v == "" {
		return nil, nil
	}

	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	return parts, nil
}

// ParseWith converts the value with a custom parser.
func ParseWith[T any](p StrictValueParser, parse func(string) (T, error)) (T, error) {
	v, err := p.AsString()
	if err != nil {
		var zero T
		return zero, err
	}

	out, err := parse(v)
	if err != nil {
		var zero T
		return zero, p.invalid("accepted by the custom parser", err)
	}

	return out, nil
}

// OptionalValueParser is StrictValueParser for values that may be absent.
// An empty value counts as absent. Accessors return ok=false for absent
// values and an error only for malformed ones.
type OptionalValueParser struct {
	strict StrictValueParser
}

// NewOptionalValueParser creates a parser for value.
func NewOptionalValueParser(value string) OptionalValueParser {
	return OptionalValueParser{strict: NewStrictValueParser(value)}
}

func (p OptionalValueParser) present() bool {
	return p.strict.defined && strings.TrimSpace(p.strict.value) != ""
}

// AsString returns the value.
func (p OptionalValueParser) AsString() (string, bool) {
	if !p.present() {
		return "", false
	}

	return p.strict.value, true
}

// AsBool returns the boolean value.
func (p OptionalValueParser) AsBool() (bool, bool, error) {
	return optional(p, p.strict.AsBool)
}

// AsInt returns the int value.
func (p OptionalValueParser) AsInt() (int, bool, error) {
	return optional(p, p.strict.AsInt)
}

// AsInt32 returns the 32-bit int value.
func (p OptionalValueParser) AsInt32() (int32, bool, error) {
	return optional(p, p.strict.AsInt32)
}

// AsInt64 returns the int64 value.
func (p OptionalValueParser) AsInt64() (int64, bool, error) {
	return optional(p, p.strict.AsInt64)
}

// AsFloat64 returns the float value.
func (p OptionalValueParser) AsFloat64() (float64, bool, error) {
	return optional(p, p.strict.AsFloat64)
}

// AsDuration returns the duration value.
func (p OptionalValueParser) AsDuration() (time.Duration, bool, error) {
	return optional(p, p.strict.AsDuration)
}

// AsTime returns the value as simulated seconds.
func (p OptionalValueParser) AsTime(unit time.Duration) (timing.VTimeInSec, bool, error) {
	return optional(p, func() (timing.VTimeInSec, error) {
		return p.strict.AsTime(unit)
	})
}

// OptionalParseWith converts a present value with a custom parser.
func OptionalParseWith[T any](
	p OptionalValueParser,
	parse func(string) (T, error),
) (T, bool, error) {
	return optional(p, func() (T, error) {
		return ParseWith(p.strict, parse)
	})
}

func optional[T any](p OptionalValueParser, get func() (T, error)) (T, bool, error) {
	var zero T
	if !p.present() {
		return zero, false, nil
	}

	v, err := get()
	if err != nil {
		return zero, false, err
	}

	return v, true, nil
}
