package scenario_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simcheck/scenario"
	"github.com/sarchlab/simcheck/timing"
)

var errBoom = errors.New("boom")

var _ = Describe("Runner", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness()
	})

	Context("ordered checks", func() {
		It("should pass when notifications arrive in order", func() {
			h.scheduled(1, "a")
			h.scheduled(2, "b")
			occurs(h.then, "a")
			occurs(h.then, "b")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
			Expect(result.EndTime).To(Equal(timing.VTimeInSec(2)))
		})

		It("should discard notifications that arrive out of order", func() {
			h.scheduled(1, "b")
			h.scheduled(2, "a")
			occurs(h.then, "a")
			waitingFor := occurs(h.then, "b")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(scenario.ErrSimulationIdle))
			step, ok := result.FailedStep()
			Expect(ok).To(BeTrue())
			Expect(step).To(BeIdenticalTo(waitingFor))
		})

		It("should match notifications broadcast by the scenario", func() {
			scenario.Broadcast(h.manager, testEvent{Name: "hello"})
			occurs(h.then, "hello")

			Expect(h.run().Outcome).To(Equal(scenario.OutcomePassed))
		})

		It("should fail when the next notification is rejected", func() {
			h.scheduled(1, "a")
			scenario.ExpectNext(h.then, func(e testEvent) error {
				if e.Name != "b" {
					return fmt.Errorf("expected b, got %s", e.Name)
				}
				return nil
			})

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(ContainSubstring("expected b, got a")))
		})

		It("should ignore notifications no check listens for", func() {
			h.manager.AddExecute(scenario.NewExecuteStep(func() error {
				h.sim.engine.DoAt(1, func() error {
					h.sim.router.Broadcast(otherEvent{Value: 1})
					h.sim.router.Broadcast(testEvent{Name: "a"})
					return nil
				}, "broadcast both")
				return nil
			}))
			occurs(h.then, "a")

			Expect(h.run().Outcome).To(Equal(scenario.OutcomePassed))
		})
	})

	Context("unordered checks", func() {
		It("should let the first declared matching check consume the notification", func() {
			h.scheduled(1, "SENT")
			scenario.Expect(h.then.Unordered("NONFINISH"), func(e testEvent) bool {
				return e.Name == "UNSENT"
			})
			occurs(h.then.Unordered("FINISH"), "SENT")
			finished := h.manager.AddWaitForAnyOf("FINISH", "NONFINISH")
			scenario.ExpectFutureEquals(h.manager, []string{"FINISH"}, finished)

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
			Expect(result.FinishedSteps).To(Equal([]string{"FINISH"}))
		})

		It("should not depend on declaration order when only one check matches", func() {
			h.scheduled(1, "SENT")
			occurs(h.then.Unordered("FINISH"), "SENT")
			scenario.Expect(h.then.Unordered("NONFINISH"), func(e testEvent) bool {
				return e.Name == "UNSENT"
			})
			finished := h.manager.AddWaitForAnyOf("FINISH", "NONFINISH")
			scenario.ExpectFutureEquals(h.manager, []string{"FINISH"}, finished)

			Expect(h.run().Outcome).To(Equal(scenario.OutcomePassed))
		})

		It("should wait for all named steps", func() {
			h.scheduled(2, "x")
			h.scheduled(1, "y")
			occurs(h.then.Unordered("X"), "x")
			occurs(h.then.Unordered("Y"), "y")
			finished := h.manager.AddWaitForAll("X", "Y")
			scenario.ExpectFutureEquals(h.manager, []string{"X", "Y"}, finished)

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
			Expect(result.FinishedSteps).To(Equal([]string{"Y", "X"}))
			Expect(result.EndTime).To(Equal(timing.VTimeInSec(2)))
		})

		It("should not offer notifications buffered before activation", func() {
			h.scheduled(1, "a")
			scenario.Wait(h.manager, 2)
			occurs(h.then.Unordered("late"), "a")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(scenario.ErrSimulationIdle))
		})

		It("should run checks registered before the scenario starts", func() {
			Expect(h.manager.AddUnorderedCheck("background",
				scenario.NewCheckStep(func(e testEvent) bool {
					return e.Name == "bg"
				}))).To(Succeed())
			h.scheduled(1, "bg")
			scenario.Wait(h.manager, 2)

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
			Expect(result.FinishedSteps).To(ContainElement("background"))
		})

		It("should fail when a never check matches", func() {
			occurs(h.then.Never("crash"), "CRASH")
			h.scheduled(1, "CRASH")
			scenario.Wait(h.manager, 2)

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(scenario.ErrUnwantedNotification))
			Expect(result.EndTime).To(Equal(timing.VTimeInSec(1)))
		})

		It("should drop notifications that nothing waits for", func() {
			occurs(h.then.Never("crash"), "CRASH")
			h.manager.AddExecute(scenario.NewExecuteStepFunc(func() {
				for i := 1; i <= 5000; i++ {
					h.sim.engine.DoAt(timing.VTimeInSec(i), func() error {
						h.sim.router.Broadcast(testEvent{Name: "tick"})
						return nil
					}, "tick")
				}
			}))
			scenario.Wait(h.manager, 5001)
			buffered := -1
			h.manager.AddExecute(scenario.NewExecuteStepFunc(func() {
				buffered = h.manager.Notifications().Len()
			}))

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
			Expect(buffered).To(Equal(0))
		})

		It("should keep notifications a later ordered check waits for", func() {
			occurs(h.then.Never("crash"), "CRASH")
			h.scheduled(1, "a")
			scenario.Wait(h.manager, 2)
			occurs(h.then, "a")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
			Expect(result.EndTime).To(Equal(timing.VTimeInSec(2)))
		})

		It("should not offer a notification taken by an unordered check to the ordered head", func() {
			h.scheduled(1, "x")
			occurs(h.then.Unordered("U"), "x")
			head := occurs(h.then, "x")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(scenario.ErrSimulationIdle))
			Expect(result.FinishedSteps).To(Equal([]string{"U"}))
			step, ok := result.FailedStep()
			Expect(ok).To(BeTrue())
			Expect(step).To(BeIdenticalTo(head))
		})

		It("should pass never checks at the end of the scenario", func() {
			occurs(h.then.Never("crash"), "CRASH")
			h.scheduled(1, "ok")
			occurs(h.then, "ok")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
			Expect(result.FinishedSteps).To(ContainElement("crash"))
		})
	})

	Context("timed checks", func() {
		It("should pass a within check matched exactly at the deadline", func() {
			h.scheduled(3, "x")
			occurs(h.then.Within(3), "x")

			Expect(h.run().Outcome).To(Equal(scenario.OutcomePassed))
		})

		It("should fail a within check at its deadline", func() {
			h.scheduled(5, "x")
			occurs(h.then.Within(2), "x")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(scenario.ErrDeadlineMissed))
			Expect(result.EndTime).To(Equal(timing.VTimeInSec(2)))
		})

		It("should measure a within check with a computed duration", func() {
			h.scheduled(2, "first")
			occurs(h.then, "first")
			delay := h.scheduled(5, "second")
			occurs(h.then.WithinFuture(scenario.Map(delay,
				func(d timing.VTimeInSec) timing.VTimeInSec { return d + 1 })),
				"second")

			Expect(h.run().Outcome).To(Equal(scenario.OutcomePassed))
		})

		It("should fail activation when the duration is not populated", func() {
			occurs(h.then.WithinFuture(
				scenario.NewMutableStepFuture[timing.VTimeInSec]()), "x")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(scenario.ErrDurationNotPopulated))
		})

		DescribeTable("after at least",
			func(d timing.VTimeInSec, outcome scenario.Outcome) {
				h.scheduled(3, "x")
				occurs(h.then.AfterAtLeast(d), "x")

				Expect(h.run().Outcome).To(Equal(outcome))
			},
			Entry("later than required", timing.VTimeInSec(2), scenario.OutcomePassed),
			Entry("exactly when allowed", timing.VTimeInSec(3), scenario.OutcomePassed),
			Entry("too early", timing.VTimeInSec(4), scenario.OutcomeFailed),
		)

		DescribeTable("after exactly",
			func(d timing.VTimeInSec, outcome scenario.Outcome, reason error) {
				h.scheduled(3, "x")
				occurs(h.then.AfterExactly(d), "x")

				result := h.run()

				Expect(result.Outcome).To(Equal(outcome))
				if reason != nil {
					Expect(result.Err).To(MatchError(reason))
				}
			},
			Entry("on time", timing.VTimeInSec(3), scenario.OutcomePassed, nil),
			Entry("late", timing.VTimeInSec(2), scenario.OutcomeFailed, scenario.ErrDeadlineMissed),
			Entry("early", timing.VTimeInSec(4), scenario.OutcomeFailed, scenario.ErrTooEarly),
		)
	})

	Context("timed checks late in the simulation", func() {
		It("should pass an after exactly check that is on time", func() {
			h.manager.Add(scenario.NewScheduledStep(1e7+0.1, func() error {
				h.sim.engine.DoAt(1e7+0.3, func() error {
					h.sim.router.Broadcast(testEvent{Name: "x"})
					return nil
				}, "broadcast x")
				return nil
			}))
			occurs(h.then.AfterExactly(0.2), "x")

			Expect(h.run().Outcome).To(Equal(scenario.OutcomePassed))
		})

		It("should still fail an after exactly check that is early", func() {
			h.manager.Add(scenario.NewScheduledStep(1e7+0.1, func() error {
				h.sim.engine.DoAt(1e7+0.2, func() error {
					h.sim.router.Broadcast(testEvent{Name: "x"})
					return nil
				}, "broadcast x")
				return nil
			}))
			occurs(h.then.AfterExactly(0.2), "x")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(scenario.ErrTooEarly))
		})
	})

	Context("unordered execute steps", func() {
		It("should run once and count as finished", func() {
			runs := 0
			Expect(h.manager.AddUnorderedExecute("setup",
				scenario.NewExecuteStepFunc(func() { runs++ }))).To(Succeed())
			occurs(h.then.Unordered("other"), "not sent")
			finished := h.manager.AddWaitForAnyOf("setup", "other")
			scenario.ExpectFutureEquals(h.manager, []string{"setup"}, finished)

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
			Expect(result.FinishedSteps).To(Equal([]string{"setup"}))
			Expect(runs).To(Equal(1))
		})

		It("should be waited for with other unordered steps", func() {
			Expect(h.manager.AddUnorderedExecute("setup",
				scenario.NewExecuteStepFunc(func() {}))).To(Succeed())
			h.scheduled(1, "x")
			occurs(h.then.Unordered("X"), "x")
			finished := h.manager.AddWaitForAll("setup", "X")
			scenario.ExpectFutureEquals(h.manager, []string{"setup", "X"}, finished)

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
			Expect(result.EndTime).To(Equal(timing.VTimeInSec(1)))
		})

		It("should share names with unordered checks", func() {
			Expect(h.manager.AddUnorderedCheck("dup", anyCheck())).To(Succeed())

			err := h.manager.AddUnorderedExecute("dup",
				scenario.NewExecuteStepFunc(func() {}))

			Expect(err).To(MatchError(scenario.ErrDuplicateStepName))
		})

		It("should fail the scenario when it fails", func() {
			step := scenario.NewExecuteStep(func() error { return errBoom })
			Expect(h.manager.AddUnorderedExecute("broken", step)).To(Succeed())
			scenario.Wait(h.manager, 1)

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(errBoom))
			failed, ok := result.FailedStep()
			Expect(ok).To(BeTrue())
			Expect(failed).To(BeIdenticalTo(step))
		})
	})

	Context("expected action failures", func() {
		explodeAt := func(at timing.VTimeInSec) {
			h.manager.AddExecute(scenario.NewExecuteStepFunc(func() {
				h.sim.engine.DoAt(at, func() error { return errBoom }, "explode")
			}))
		}

		It("should consume the expected failure and carry on", func() {
			explodeAt(1)
			scenario.ExpectFailureIs(h.manager, errBoom)
			h.scheduled(2, "after")
			occurs(h.then, "after")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
			Expect(result.EndTime).To(Equal(timing.VTimeInSec(2)))
		})

		It("should fail on a failure it does not expect", func() {
			explodeAt(1)
			scenario.ExpectFailure(h.manager, func(error) bool { return false })

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(errBoom))
		})

		It("should fail on a failure before the check is reached", func() {
			explodeAt(1)
			scenario.Wait(h.manager, 2)
			scenario.ExpectFailureIs(h.manager, errBoom)

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(errBoom))
			Expect(result.EndTime).To(Equal(timing.VTimeInSec(1)))
		})

		It("should fail when the expected failure never happens", func() {
			expected := scenario.ExpectFailureIs(h.manager, errBoom)

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(scenario.ErrSimulationIdle))
			step, ok := result.FailedStep()
			Expect(ok).To(BeTrue())
			Expect(step).To(BeIdenticalTo(expected))
		})
	})

	Context("failing steps", func() {
		It("should report an expected failure", func() {
			h.scheduled(5, "x")
			occurs(h.then.Failing().Within(2), "x")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeExpectedFailure))
			Expect(result.Passed()).To(BeTrue())
		})

		It("should report an unexpected pass", func() {
			h.scheduled(1, "x")
			occurs(h.then.Failing(), "x")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeUnexpectedPass))
			Expect(result.Passed()).To(BeFalse())
		})
	})

	Context("failures", func() {
		It("should attribute an execute step error to the step", func() {
			h.manager.AddExecute(scenario.NewExecuteStep(func() error {
				return errBoom
			}))

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(errBoom))
			step, ok := result.FailedStep()
			Expect(ok).To(BeTrue())
			Expect(step.StepOrder()).To(Equal(1))
		})

		It("should fail on a failing simulation event", func() {
			h.manager.AddExecute(scenario.NewExecuteStep(func() error {
				h.sim.engine.DoAt(1, func() error { return errBoom }, "broken")
				return nil
			}))
			occurs(h.then, "never sent")

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(errBoom))
			Expect(result.EndTime).To(Equal(timing.VTimeInSec(1)))
		})

		It("should run final steps after a failure", func() {
			ran := false
			h.manager.AddFinalStep(scenario.NewExecuteStepFunc(func() {
				ran = true
			}))
			h.manager.AddExecute(scenario.NewExecuteStep(func() error {
				return errBoom
			}))

			h.run()

			Expect(ran).To(BeTrue())
		})

		It("should fail when a final step fails", func() {
			h.manager.AddFinalStep(scenario.NewExecuteStep(func() error {
				return errBoom
			}))

			result := h.run()

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(errBoom))
		})

		It("should stop at the time limit", func() {
			Expect(h.manager.AddExecuteWithType(
				scenario.NewExecuteStepFunc(func() {}),
				scenario.Periodic(h.manager.SchedulerSupplier(), 1),
			)).To(Succeed())
			occurs(h.then, "never sent")

			result := h.runWith(scenario.NewRunner(h.manager).WithTimeLimit(10))

			Expect(result.Outcome).To(Equal(scenario.OutcomeFailed))
			Expect(result.Err).To(MatchError(scenario.ErrTimeLimitReached))
			Expect(result.EndTime).To(Equal(timing.VTimeInSec(10)))
		})

		It("should return when the context ends", func() {
			Expect(h.manager.AddExecuteWithType(
				scenario.NewExecuteStepFunc(func() {}),
				scenario.Periodic(h.manager.SchedulerSupplier(), 1),
			)).To(Succeed())
			occurs(h.then, "never sent")

			ctx, cancel := context.WithTimeout(
				context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err := scenario.NewRunner(h.manager).Run(ctx)

			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})

	It("should repeat periodic steps until the scenario ends", func() {
		count := 0
		Expect(h.manager.AddExecuteWithType(
			scenario.NewExecuteStepFunc(func() { count++ }),
			scenario.Periodic(h.manager.SchedulerSupplier(), 1),
		)).To(Succeed())
		scenario.Wait(h.manager, 3.5)
		h.manager.AddExecute(scenario.NewExecuteStep(func() error {
			if count != 4 {
				return fmt.Errorf("ran %d times", count)
			}
			return nil
		}))

		result := h.run()

		Expect(result.Outcome).To(Equal(scenario.OutcomePassed))
		Expect(count).To(Equal(4))
	})

	It("should report progress through hooks", func() {
		var buf bytes.Buffer
		runner := scenario.NewRunner(h.manager)
		runner.AcceptHook(scenario.NewStepLogger(log.New(&buf, "", 0)))
		h.scheduled(1, "a")
		occurs(h.then, "a")

		h.runWith(runner)

		Expect(buf.String()).To(ContainSubstring("notification"))
		Expect(buf.String()).To(ContainSubstring("finished"))
		Expect(buf.String()).To(ContainSubstring("scenario passed"))
	})
})
