package scenario_test

import (
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simcheck/scenario"
)

type named interface {
	Label() string
}

func (e testEvent) Label() string { return e.Name }

var _ = Describe("NotificationCache", func() {
	var cache *scenario.NotificationCache

	BeforeEach(func() {
		cache = scenario.NewNotificationCache()
	})

	It("should only buffer known notifications", func() {
		cache.AddKnownNotification(reflect.TypeFor[testEvent]())

		Expect(cache.Add(testEvent{Name: "a"}, 1)).To(BeTrue())
		Expect(cache.Add(otherEvent{Value: 1}, 1)).To(BeFalse())
		Expect(cache.Add(nil, 1)).To(BeFalse())
		Expect(cache.Len()).To(Equal(1))
	})

	It("should buffer notifications by capability", func() {
		cache.AddKnownNotification(reflect.TypeFor[named]())

		Expect(cache.IsKnown(testEvent{Name: "a"})).To(BeTrue())
		Expect(cache.IsKnown(otherEvent{})).To(BeFalse())
	})

	It("should not register a type twice", func() {
		cache.AddKnownNotification(reflect.TypeFor[testEvent]())
		cache.AddKnownNotification(reflect.TypeFor[testEvent]())

		Expect(cache.KnownNotifications()).To(HaveLen(1))
	})

	It("should keep arrival order and consume selectively", func() {
		cache.AddKnownNotification(reflect.TypeFor[testEvent]())
		cache.Add(testEvent{Name: "a"}, 1)
		cache.Add(testEvent{Name: "b"}, 2)
		cache.Add(testEvent{Name: "c"}, 3)

		pending := cache.Pending()
		cache.Consume(pending[1])

		var names []string
		for _, p := range cache.Pending() {
			names = append(names, p.Notification.(testEvent).Name)
		}
		Expect(names).To(Equal([]string{"a", "c"}))
		Expect(pending).To(HaveLen(3))
	})

	It("should tag notifications with the current generation", func() {
		cache.AddKnownNotification(reflect.TypeFor[testEvent]())
		cache.Add(testEvent{Name: "old"}, 1)
		cache.ResetUnorderedNotification()
		cache.Add(testEvent{Name: "new"}, 2)

		pending := cache.Pending()
		Expect(pending[0].Generation).To(Equal(0))
		Expect(pending[1].Generation).To(Equal(1))
		Expect(pending[1].Time).To(BeNumerically("==", 2))
	})

	It("should keep buffered notifications across generation resets", func() {
		cache.AddKnownNotification(reflect.TypeFor[testEvent]())
		cache.Add(testEvent{Name: "a"}, 1)
		cache.Add(testEvent{Name: "b"}, 2)
		pending := cache.Pending()
		known := cache.KnownNotifications()

		cache.ResetUnorderedNotification()
		cache.ResetUnorderedNotification()

		Expect(cache.Pending()).To(Equal(pending))
		Expect(cache.KnownNotifications()).To(Equal(known))
		Expect(cache.Generation()).To(Equal(2))
		Expect(cache.Pending()[1].Generation).To(Equal(0))
	})

	It("should clear idempotently", func() {
		cache.AddKnownNotification(reflect.TypeFor[testEvent]())
		cache.Add(testEvent{Name: "a"}, 1)
		cache.ResetUnorderedNotification()

		cache.Clear()
		cache.Clear()

		Expect(cache.Len()).To(Equal(0))
		Expect(cache.Generation()).To(Equal(0))
		Expect(cache.KnownNotifications()).To(BeEmpty())
	})
})
