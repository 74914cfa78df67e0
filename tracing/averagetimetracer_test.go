package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/simcheck/timing"
)

var _ = Describe("AverageTimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		t          *AverageTimeTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)

		t = NewAverageTimeTracer(timeTeller, TaskKindIs(TaskKindStep))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should average the duration of matching tasks", func() {
		timeTeller.EXPECT().CurrentTime().Return(timing.VTimeInSec(1))
		t.StartTask(Task{ID: "1", Kind: TaskKindStep})
		timeTeller.EXPECT().CurrentTime().Return(timing.VTimeInSec(3))
		t.EndTask(Task{ID: "1"})

		timeTeller.EXPECT().CurrentTime().Return(timing.VTimeInSec(3))
		t.StartTask(Task{ID: "2", Kind: TaskKindStep})
		timeTeller.EXPECT().CurrentTime().Return(timing.VTimeInSec(7))
		t.EndTask(Task{ID: "2"})

		Expect(t.TotalCount()).To(Equal(uint64(2)))
		Expect(t.AverageTime()).To(BeNumerically("~", 3.0, 1e-12))
	})

	It("should ignore tasks that do not pass the filter", func() {
		timeTeller.EXPECT().CurrentTime().Return(timing.VTimeInSec(1))
		t.StartTask(Task{ID: "1", Kind: TaskKindEvent})
		timeTeller.EXPECT().CurrentTime().Return(timing.VTimeInSec(2))
		t.EndTask(Task{ID: "1"})

		Expect(t.TotalCount()).To(BeZero())
		Expect(t.AverageTime()).To(BeZero())
	})
})
