// Package simulation assembles the services a scenario runs against.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sarchlab/simcheck/datarecording"
	"github.com/sarchlab/simcheck/monitoring"
	"github.com/sarchlab/simcheck/notify"
	"github.com/sarchlab/simcheck/random"
	"github.com/sarchlab/simcheck/scenario"
	"github.com/sarchlab/simcheck/timing"
	"github.com/sarchlab/simcheck/tracing"
)

var _ scenario.SimulationAPI = (*Simulation)(nil)

// A Simulation provides the services that a scenario runs against: an
// engine, a notification router, and optional recording and monitoring.
type Simulation struct {
	id        string
	engine    *timing.SerialEngine
	router    *notify.Router
	timeUnit  time.Duration
	timeLimit timing.VTimeInSec
	random    *random.RepeatableRandom
	logger    *log.Logger

	recorder datarecording.DataRecorder
	runInfo  *datarecording.RunInfoRecorder
	tracer   *tracing.DBTracer
	monitor  *monitoring.Monitor

	stepTimes *tracing.AverageTimeTracer

	terminated bool
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Scheduler returns the engine of the simulation.
func (s *Simulation) Scheduler() timing.Engine {
	return s.engine
}

// Router returns the router that carries the simulation's notifications.
func (s *Simulation) Router() *notify.Router {
	return s.router
}

// TimeUnit returns the wall-clock duration of one simulated second.
func (s *Simulation) TimeUnit() time.Duration {
	return s.timeUnit
}

// Random returns the seeded random source of the simulation.
func (s *Simulation) Random() *random.RepeatableRandom {
	return s.random
}

// Recorder returns the data recorder, or nil when recording is off.
func (s *Simulation) Recorder() datarecording.DataRecorder {
	return s.recorder
}

// Tracer returns the trace writer, or nil when recording is off.
func (s *Simulation) Tracer() *tracing.DBTracer {
	return s.tracer
}

// StepTimes returns the step duration tracer of the latest runner, or nil
// before NewRunner is called.
func (s *Simulation) StepTimes() *tracing.AverageTimeTracer {
	return s.stepTimes
}

// Monitor returns the monitor, or nil when monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// NewScenario creates a StepManager over a fresh step and notification
// cache.
func (s *Simulation) NewScenario() *scenario.StepManager {
	return scenario.NewStepManager(
		scenario.NewStepCache(), s, scenario.NewNotificationCache())
}

// NewRunner creates a runner for manager and connects it to the logger,
// the tracers, and the monitor of the simulation.
func (s *Simulation) NewRunner(manager *scenario.StepManager) *scenario.Runner {
	runner := scenario.NewRunner(manager)

	s.stepTimes = tracing.NewAverageTimeTracer(
		s.engine, tracing.TaskKindIs(tracing.TaskKindStep))
	tracing.CollectTrace(runner, s.stepTimes)

	if s.timeLimit > 0 {
		runner.WithTimeLimit(s.timeLimit)
	}

	if s.logger != nil {
		runner.AcceptHook(scenario.NewStepLogger(s.logger))
	}

	if s.tracer != nil {
		tracing.CollectTrace(runner, s.tracer)
	}

	if s.monitor != nil {
		s.monitor.RegisterRunner(runner,
			uint64(len(manager.Cache().OrderedSteps())))
	}

	return runner
}

// Run runs the scenario declared on manager and records its verdict.
func (s *Simulation) Run(
	ctx context.Context,
	manager *scenario.StepManager,
) (*scenario.Result, error) {
	result, err := s.NewRunner(manager).Run(ctx)
	if err != nil {
		return nil, err
	}

	if s.runInfo != nil {
		s.runInfo.Set("Outcome", result.Outcome.String())
		s.runInfo.Set("End Simulated Time", fmt.Sprintf("%.10f", result.EndTime))
		s.runInfo.Set("Step Count", fmt.Sprint(s.stepTimes.TotalCount()))
		s.runInfo.Set("Average Step Duration",
			fmt.Sprintf("%.10f", s.stepTimes.AverageTime()))
	}

	return result, nil
}

// Terminate stops the engine, drops every notification handler, and closes
// the recorder and the monitor. Calling it again does nothing.
func (s *Simulation) Terminate() error {
	if s.terminated {
		return nil
	}

	s.terminated = true

	s.engine.Stop()
	s.router.ClearAllHandlers()

	var errs []error

	if s.tracer != nil {
		errs = append(errs, s.tracer.Terminate())
	}

	if s.runInfo != nil {
		errs = append(errs, s.runInfo.End())
	}

	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		errs = append(errs, s.monitor.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
