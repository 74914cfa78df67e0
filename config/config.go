// Package config loads scenario settings from properties files and checks
// that every defined property is used.
package config

import (
	"io"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// FilePrefixSeparator marks a prefixed key inside a file. Keys in files are
// limited to letters, digits, '_' and '.', so "siteA__Scenario.SEED" in a
// file is read as "siteA@Scenario.SEED".
const FilePrefixSeparator = "__"

// Config holds key-value properties.
type Config struct {
	values  map[string]string
	prefix  string
	checker *UsageChecker
}

// Load reads properties files. Later files override earlier ones.
func Load(filenames ...string) (*Config, error) {
	c := FromMap(nil)

	for _, f := range filenames {
		values, err := godotenv.Read(f)
		if err != nil {
			return nil, err
		}

		c.setFileValues(values)
	}

	return c, nil
}

// Parse reads properties from r.
func Parse(r io.Reader) (*Config, error) {
	values, err := godotenv.Parse(r)
	if err != nil {
		return nil, err
	}

	c := FromMap(nil)
	c.setFileValues(values)

	return c, nil
}

// FromMap creates a Config holding a copy of values.
func FromMap(values map[string]string) *Config {
	c := &Config{
		values:  make(map[string]string),
		checker: NewUsageChecker(),
	}

	for k, v := range values {
		c.Set(k, v)
	}

	return c
}

func (c *Config) setFileValues(values map[string]string) {
	for k, v := range values {
		c.Set(strings.Replace(k, FilePrefixSeparator, PrefixSeparator, 1), v)
	}
}

// Set defines or overrides a property.
func (c *Config) Set(key, value string) {
	c.values[key] = value
	c.checker.Define(key)
}

// WithPrefix returns a view that prefers "prefix@key" over "key". The view
// shares values and usage with c.
func (c *Config) WithPrefix(prefix string) *Config {
	return &Config{
		values:  c.values,
		prefix:  prefix,
		checker: c.checker,
	}
}

func (c *Config) lookup(key string) (string, bool) {
	c.checker.Access(key)

	if c.prefix != "" {
		if v, found := c.values[c.prefix+PrefixSeparator+key]; found {
			return v, true
		}
	}

	v, found := c.values[key]

	return v, found
}

// ContainsKey tells if key is defined.
func (c *Config) ContainsKey(key string) bool {
	_, found := c.lookup(key)
	return found
}

// Value returns a parser that fails if key is not defined.
func (c *Config) Value(key string) StrictValueParser {
	v, found := c.lookup(key)

	return StrictValueParser{key: key, value: v, defined: found}
}

// Optional returns a parser for a key that may be absent.
func (c *Config) Optional(key string) OptionalValueParser {
	return OptionalValueParser{strict: c.Value(key)}
}

// Keys returns every defined key, sorted.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// UnrecognisedProperties returns the defined keys that were never read.
func (c *Config) UnrecognisedProperties() []string {
	return c.checker.UnrecognisedProperties()
}
