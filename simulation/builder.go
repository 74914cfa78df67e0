package simulation

import (
	"fmt"
	"log"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/simcheck/config"
	"github.com/sarchlab/simcheck/datarecording"
	"github.com/sarchlab/simcheck/monitoring"
	"github.com/sarchlab/simcheck/notify"
	"github.com/sarchlab/simcheck/random"
	"github.com/sarchlab/simcheck/timing"
	"github.com/sarchlab/simcheck/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	timeUnit    time.Duration
	timeLimit   timing.VTimeInSec
	seed        int64
	monitorOn   bool
	monitorPort int
	openBrowser bool
	recording   bool
	recorderCfg datarecording.RecorderConfig
	logger      *log.Logger
	eventLogger *log.Logger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		timeUnit:  time.Second,
		seed:      1,
		monitorOn: true,
	}
}

// WithTimeUnit sets the wall-clock duration one simulated second stands for.
func (b Builder) WithTimeUnit(unit time.Duration) Builder {
	b.timeUnit = unit
	return b
}

// WithTimeLimit fails scenarios that have not ended at the given time.
func (b Builder) WithTimeLimit(limit timing.VTimeInSec) Builder {
	b.timeLimit = limit
	return b
}

// WithSeed sets the seed of the simulation's random source.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithOpenBrowser opens the monitoring page once the server is up.
func (b Builder) WithOpenBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithRecording records traces into the SQLite file path + ".sqlite3". An
// empty path picks a unique name.
func (b Builder) WithRecording(path string) Builder {
	b.recording = true
	b.recorderCfg = datarecording.RecorderConfig{Type: "sqlite", Path: path}

	return b
}

// WithRecorderConfig records traces into the backend described by cfg.
func (b Builder) WithRecorderConfig(cfg datarecording.RecorderConfig) Builder {
	b.recording = true
	b.recorderCfg = cfg

	return b
}

// WithLogger prints the progress of every scenario into logger.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithEventLogger prints every engine event into logger.
func (b Builder) WithEventLogger(logger *log.Logger) Builder {
	b.eventLogger = logger
	return b
}

// WithSettings applies settings read from a configuration file. Monitoring
// is on only when a port is configured.
func (b Builder) WithSettings(s config.Settings, logger *log.Logger) Builder {
	b = b.WithTimeUnit(s.TimeUnit).
		WithTimeLimit(s.TimeLimit).
		WithSeed(s.Seed)

	if s.MonitorPort > 0 {
		b = b.WithMonitorPort(s.MonitorPort)
	} else {
		b = b.WithoutMonitoring()
	}

	if s.RecordPath != "" {
		b = b.WithRecording(s.RecordPath)
	}

	if s.Verbose {
		b = b.WithLogger(logger)
	}

	return b
}

func (b Builder) parametersMustBeValid() error {
	if !b.monitorOn && b.monitorPort != 0 {
		return fmt.Errorf(
			"simulation: monitor port cannot be set when monitoring is disabled")
	}

	if b.timeUnit <= 0 {
		return fmt.Errorf("simulation: time unit must be positive, got %s",
			b.timeUnit)
	}

	if b.timeLimit < 0 {
		return fmt.Errorf("simulation: time limit must not be negative")
	}

	return nil
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	s := &Simulation{
		id:        xid.New().String(),
		engine:    timing.NewSerialEngine(),
		router:    notify.NewRouter(),
		timeUnit:  b.timeUnit,
		timeLimit: b.timeLimit,
		random:    random.NewRepeatableRandom(b.seed),
		logger:    b.logger,
	}

	if b.eventLogger != nil {
		s.engine.AcceptHook(timing.NewEventLogger(b.eventLogger))
	}

	if b.recording {
		if err := s.startRecording(b.recorderCfg); err != nil {
			return nil, err
		}
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().
			WithPortNumber(b.monitorPort).
			WithOpenBrowser(b.openBrowser)
		s.monitor.RegisterEngine(s.engine)

		if _, err := s.monitor.StartServer(); err != nil {
			_ = s.Terminate()
			return nil, err
		}
	}

	return s, nil
}

func (s *Simulation) startRecording(cfg datarecording.RecorderConfig) error {
	if cfg.Path == "" && cfg.ConnStr == "" && cfg.Host == "" {
		cfg.Path = "simcheck_sim_" + s.id
	}

	recorder, err := datarecording.NewDataRecorderWithConfig(cfg)
	if err != nil {
		return err
	}

	s.recorder = recorder
	s.runInfo = datarecording.NewRunInfoRecorder(recorder)
	s.runInfo.Start()
	s.runInfo.Set("Simulation ID", s.id)

	s.tracer = tracing.NewDBTracer(s.engine, recorder)

	return nil
}
