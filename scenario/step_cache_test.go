package scenario_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simcheck/scenario"
)

func anyCheck() *scenario.CheckStep {
	return scenario.NewCheckStep(func(testEvent) bool { return true })
}

var _ = Describe("StepCache", func() {
	var cache *scenario.StepCache

	BeforeEach(func() {
		cache = scenario.NewStepCache()
	})

	It("should hand out increasing step orders", func() {
		Expect(cache.NextStepOrder()).To(Equal(1))
		Expect(cache.NextStepOrder()).To(Equal(2))
	})

	It("should only await notifications of checks not yet reached", func() {
		past := anyCheck()
		next := scenario.NewCheckStep(func(otherEvent) bool { return true })
		cache.AddOrdered(past)
		cache.AddOrdered(scenario.NewWaitStep(1))
		cache.AddOrdered(next)

		Expect(cache.IsAwaited(testEvent{})).To(BeTrue())
		cache.Advance()

		Expect(cache.IsAwaited(testEvent{})).To(BeFalse())
		Expect(cache.IsAwaited(otherEvent{})).To(BeTrue())
	})

	It("should walk the ordered steps", func() {
		a := scenario.NewExecuteStepFunc(func() {})
		b := scenario.NewWaitStep(1)
		cache.AddOrdered(a)
		cache.AddOrdered(b)

		Expect(cache.Head()).To(BeIdenticalTo(a))
		cache.Advance()
		Expect(cache.Head()).To(BeIdenticalTo(b))
		cache.Advance()
		Expect(cache.Head()).To(BeNil())
		Expect(cache.IsOrderedFinished()).To(BeTrue())
		cache.Advance()
		Expect(cache.OrderedSteps()).To(HaveLen(2))
	})

	It("should reject duplicated unordered names", func() {
		Expect(cache.AddUnordered("a", scenario.NewActiveCheck("a", anyCheck()))).
			To(Succeed())

		err := cache.AddUnordered("a", scenario.NewActiveCheck("a", anyCheck()))

		Expect(err).To(MatchError(scenario.ErrDuplicateStepName))
	})

	It("should remove unordered steps by name", func() {
		first := scenario.NewActiveCheck("first", anyCheck())
		second := scenario.NewActiveCheck("second", anyCheck())
		Expect(cache.AddUnordered("first", first)).To(Succeed())
		Expect(cache.AddUnordered("second", second)).To(Succeed())

		Expect(cache.RemoveUnordered("first")).To(BeTrue())
		Expect(cache.RemoveUnordered("first")).To(BeFalse())

		Expect(cache.UnorderedChecks()).To(ConsistOf(second))
		_, found := cache.Unordered("first")
		Expect(found).To(BeFalse())
		Expect(cache.HasBlockingUnordered()).To(BeTrue())
	})

	It("should track failing steps by identity", func() {
		check := anyCheck()
		other := anyCheck()

		cache.AddFailingStep(check)

		Expect(cache.IsFailingStep(check)).To(BeTrue())
		Expect(cache.IsFailingStep(other)).To(BeFalse())
		cache.RemoveFailingStep(check)
		Expect(cache.HasFailingSteps()).To(BeFalse())
	})

	It("should record finished steps once", func() {
		cache.MarkFinished("b")
		cache.MarkFinished("a")
		cache.MarkFinished("b")

		Expect(cache.IsFinished("a")).To(BeTrue())
		Expect(cache.FinishedSteps()).To(Equal([]string{"b", "a"}))
	})

	It("should reset idempotently", func() {
		cache.AddOrdered(scenario.NewWaitStep(1))
		cache.AddFinalStep(scenario.NewExecuteStepFunc(func() {}))
		cache.MarkFinished("a")
		cache.NextStepOrder()

		cache.Reset()
		cache.Reset()

		Expect(cache.Head()).To(BeNil())
		Expect(cache.FinalSteps()).To(BeEmpty())
		Expect(cache.FinishedSteps()).To(BeEmpty())
		Expect(cache.NextStepOrder()).To(Equal(1))
	})
})
