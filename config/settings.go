package config

import (
	"time"

	"github.com/sarchlab/simcheck/timing"
)

// Keys of the scenario settings.
const (
	KeySeed        = "Scenario.SEED"
	KeyTimeUnit    = "Scenario.TIME_UNIT"
	KeyTimeLimit   = "Scenario.TIME_LIMIT"
	KeyMonitorPort = "Scenario.MONITOR_PORT"
	KeyRecordPath  = "Scenario.RECORD_PATH"
	KeyVerbose     = "Scenario.VERBOSE"
)

// Settings controls how a scenario is run.
type Settings struct {
	Seed        int64
	TimeUnit    time.Duration
	TimeLimit   timing.VTimeInSec
	MonitorPort int
	RecordPath  string
	Verbose     bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Seed:     1,
		TimeUnit: time.Second,
	}
}

// Settings reads the scenario settings, keeping defaults for absent keys.
func (c *Config) Settings() (Settings, error) {
	s := DefaultSettings()

	if v, ok, err := c.Optional(KeySeed).AsInt64(); err != nil {
		return s, err
	} else if ok {
		s.Seed = v
	}

	if v, ok, err := c.Optional(KeyTimeUnit).AsDuration(); err != nil {
		return s, err
	} else if ok {
		s.TimeUnit = v
	}

	if v, ok, err := c.Optional(KeyTimeLimit).AsTime(time.Second); err != nil {
		return s, err
	} else if ok {
		s.TimeLimit = v
	}

	if v, ok, err := c.Optional(KeyMonitorPort).AsInt(); err != nil {
		return s, err
	} else if ok {
		s.MonitorPort = v
	}

	if v, ok := c.Optional(KeyRecordPath).AsString(); ok {
		s.RecordPath = v
	}

	if v, ok, err := c.Optional(KeyVerbose).AsBool(); err != nil {
		return s, err
	} else if ok {
		s.Verbose = v
	}

	return s, nil
}
