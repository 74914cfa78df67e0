package tracing

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/simcheck/notify"
	"github.com/sarchlab/simcheck/scenario"
	"github.com/sarchlab/simcheck/timing"
)

type tracedSimulation struct {
	engine *timing.SerialEngine
	router *notify.Router
}

func (s *tracedSimulation) Scheduler() timing.Engine { return s.engine }
func (s *tracedSimulation) Router() *notify.Router   { return s.router }
func (s *tracedSimulation) TimeUnit() time.Duration  { return time.Second }

type lightChanged struct {
	Color string
}

// traceLog keeps what a MockTracer was called with.
type traceLog struct {
	started    []Task
	ended      []Task
	milestones []Milestone
}

func recordInto(tracer *MockTracer, log *traceLog) {
	tracer.EXPECT().StartTask(gomock.Any()).
		Do(func(task Task) { log.started = append(log.started, task) }).
		AnyTimes()
	tracer.EXPECT().EndTask(gomock.Any()).
		Do(func(task Task) { log.ended = append(log.ended, task) }).
		AnyTimes()
	tracer.EXPECT().AddMilestone(gomock.Any()).
		Do(func(m Milestone) { log.milestones = append(log.milestones, m) }).
		AnyTimes()
}

func milestonesOfKind(log *traceLog, kind string) []Milestone {
	var found []Milestone

	for _, m := range log.milestones {
		if m.Kind == kind {
			found = append(found, m)
		}
	}

	return found
}

var _ = Describe("CollectTrace", func() {
	var (
		mockCtrl *gomock.Controller
		tracer   *MockTracer
		log      *traceLog
		sim      *tracedSimulation
		manager  *scenario.StepManager
		then     scenario.ThenSteps
	)

	run := func(runner *scenario.Runner) *scenario.Result {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := runner.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		return result
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		tracer = NewMockTracer(mockCtrl)
		log = &traceLog{}
		recordInto(tracer, log)

		sim = &tracedSimulation{
			engine: timing.NewSerialEngine(),
			router: notify.NewRouter(),
		}
		manager = scenario.NewStepManager(
			scenario.NewStepCache(), sim, scenario.NewNotificationCache())
		then = scenario.NewThenSteps(manager)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should trace steps, notifications, and the verdict", func() {
		manager.AddExecute(scenario.NewExecuteStepFunc(func() {
			sim.engine.DoAt(2, func() error {
				sim.router.Broadcast(lightChanged{Color: "red"})
				return nil
			}, "turn red")
		}))
		scenario.Expect(then, func(e lightChanged) bool {
			return e.Color == "red"
		})

		runner := scenario.NewRunner(manager)
		CollectTrace(runner, tracer)

		Expect(run(runner).Outcome).To(Equal(scenario.OutcomePassed))

		Expect(log.started).To(HaveLen(2))
		Expect(log.ended).To(HaveLen(2))
		for i := range log.started {
			Expect(log.started[i].Kind).To(Equal(TaskKindStep))
			Expect(log.ended[i].ID).To(Equal(log.started[i].ID))
		}

		notifications := milestonesOfKind(log, MilestoneKindNotification)
		Expect(notifications).To(HaveLen(1))
		Expect(notifications[0].What).To(Equal("tracing.lightChanged"))

		verdicts := milestonesOfKind(log, MilestoneKindVerdict)
		Expect(verdicts).To(HaveLen(1))
		Expect(verdicts[0].What).To(Equal("passed"))
	})

	It("should attach a failure milestone to the failing step", func() {
		manager.AddExecute(scenario.NewExecuteStep(func() error {
			return errors.New("boom")
		}))

		runner := scenario.NewRunner(manager)
		CollectTrace(runner, tracer)

		Expect(run(runner).Outcome).To(Equal(scenario.OutcomeFailed))

		failures := milestonesOfKind(log, MilestoneKindFailure)
		Expect(failures).To(HaveLen(1))
		Expect(failures[0].What).To(ContainSubstring("boom"))
		Expect(failures[0].TaskID).To(Equal(log.started[0].ID))
	})

	It("should trace engine events", func() {
		CollectTrace(sim.engine, tracer)

		sim.engine.DoAt(1, func() error { return nil }, "tick")
		sim.engine.DoAt(2, func() error { return nil }, "")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sim.engine.Start()
		Expect(sim.engine.WaitIdle(ctx)).To(Succeed())
		sim.engine.Stop()

		Expect(log.started).To(HaveLen(2))
		Expect(log.started[0].What).To(Equal("tick"))
		Expect(log.started[1].What).To(Equal("event"))
		Expect(log.ended).To(HaveLen(2))
		Expect(log.ended[0].Kind).To(Equal(TaskKindEvent))
	})

	It("should refuse the same tracer twice", func() {
		CollectTrace(sim.engine, tracer)

		Expect(func() { CollectTrace(sim.engine, tracer) }).To(Panic())
	})
})
