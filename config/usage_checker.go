package config

import (
	"sort"
	"strings"
	"sync"
)

// PrefixSeparator splits a prefixed key such as "siteA@Scenario.SEED" into
// its prefix and the key it overrides.
const PrefixSeparator = "@"

// UsageChecker records which keys a program reads, to report the defined
// keys it never reads. Those are usually typos.
type UsageChecker struct {
	lock     sync.Mutex
	defined  map[string]bool
	accessed map[string]bool
}

// NewUsageChecker creates an empty checker.
func NewUsageChecker() *UsageChecker {
	return &UsageChecker{
		defined:  make(map[string]bool),
		accessed: make(map[string]bool),
	}
}

// Define records keys present in the configuration.
func (c *UsageChecker) Define(keys ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, k := range keys {
		c.defined[k] = true
	}
}

// Access records that key was read.
func (c *UsageChecker) Access(key string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.accessed[key] = true
}

// UnrecognisedProperties returns, sorted, the defined keys that were never
// read. A prefixed key is recognised when the key it overrides was read.
func (c *UsageChecker) UnrecognisedProperties() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	var out []string
	for k := range c.defined {
		if !c.recognisedLocked(k) {
			out = append(out, k)
		}
	}

	sort.Strings(out)

	return out
}

func (c *UsageChecker) recognisedLocked(key string) bool {
	i := strings.LastIndex(key, PrefixSeparator)
	if i < 0 {
		return c.accessed[key]
	}

	return c.accessed[key[i+len(PrefixSeparator):]]
}
