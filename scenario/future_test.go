package scenario_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simcheck/scenario"
)

var _ = Describe("StepFuture", func() {
	It("should report an unpopulated future", func() {
		f := scenario.NewMutableStepFuture[int]()

		_, err := f.Get()

		Expect(f.HasBeenPopulated()).To(BeFalse())
		Expect(err).To(MatchError(scenario.ErrFutureNotPopulated))
	})

	It("should only be populated once", func() {
		f := scenario.NewMutableStepFuture[int]()

		Expect(f.Populate(1)).To(Succeed())
		Expect(f.Populate(2)).To(MatchError(scenario.ErrFutureAlreadyPopulated))

		v, err := f.Get()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(1))
	})

	It("should hold a literal value", func() {
		f := scenario.FutureOf("ready")

		Expect(f.HasBeenPopulated()).To(BeTrue())
		Expect(f.Get()).To(Equal("ready"))
	})

	It("should call listeners once the value is available", func() {
		f := scenario.NewMutableStepFuture[int]()
		var seen []int
		f.OnPopulated(func(v int) { seen = append(seen, v) })

		Expect(seen).To(BeEmpty())
		Expect(f.Populate(7)).To(Succeed())
		f.OnPopulated(func(v int) { seen = append(seen, v*10) })

		Expect(seen).To(Equal([]int{7, 70}))
	})

	It("should map values when the source is populated", func() {
		src := scenario.NewMutableStepFuture[int]()
		derived := scenario.Map(src, func(v int) int { return v + 1 })

		Expect(derived.HasBeenPopulated()).To(BeFalse())
		Expect(src.Populate(41)).To(Succeed())

		Expect(derived.Get()).To(Equal(42))
	})

	It("should map a populated source right away", func() {
		derived := scenario.Map(scenario.FutureOf(2),
			func(v int) string { return string(rune('a' + v)) })

		Expect(derived.Get()).To(Equal("c"))
	})
})
