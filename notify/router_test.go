package notify_test

import (
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simcheck/notify"
)

type colourChanged interface {
	Colour() string
}

type lightChanged struct {
	colour string
}

func (n lightChanged) Colour() string { return n.colour }

type buttonPressed struct{}

var _ = Describe("Router", func() {
	var (
		router   *notify.Router
		received []string
	)

	BeforeEach(func() {
		router = notify.NewRouter()
		received = nil
	})

	It("should deliver to handlers of the concrete type in order", func() {
		notify.Subscribe(router, func(n lightChanged) {
			received = append(received, "first:"+n.colour)
		})
		notify.Subscribe(router, func(n lightChanged) {
			received = append(received, "second:"+n.colour)
		})
		notify.Subscribe(router, func(buttonPressed) {
			received = append(received, "button")
		})

		router.Broadcast(lightChanged{colour: "RED"})

		Expect(received).To(Equal([]string{"first:RED", "second:RED"}))
	})

	It("should deliver to handlers subscribed to a capability", func() {
		notify.Subscribe(router, func(n colourChanged) {
			received = append(received, n.Colour())
		})
		notify.Subscribe(router, func(n any) {
			received = append(received, "any")
		})

		router.Broadcast(lightChanged{colour: "GREEN"})
		router.Broadcast(buttonPressed{})

		Expect(received).To(Equal([]string{"GREEN", "any", "any"}))
	})

	It("should stop delivering after unregistering", func() {
		id := notify.Subscribe(router, func(buttonPressed) {
			received = append(received, "button")
		})

		router.Broadcast(buttonPressed{})
		Expect(router.Unregister(id)).To(BeTrue())
		Expect(router.Unregister(id)).To(BeFalse())
		router.Broadcast(buttonPressed{})

		Expect(received).To(HaveLen(1))
	})

	It("should skip handlers removed during the same broadcast", func() {
		var second notify.SubscriptionID
		notify.Subscribe(router, func(buttonPressed) {
			received = append(received, "first")
			router.Unregister(second)
		})
		second = notify.Subscribe(router, func(buttonPressed) {
			received = append(received, "second")
		})

		router.Broadcast(buttonPressed{})

		Expect(received).To(Equal([]string{"first"}))
	})

	It("should clear all handlers", func() {
		router.Register(reflect.TypeFor[buttonPressed](), func(any) {
			received = append(received, "button")
		})
		Expect(router.NumHandlers()).To(Equal(1))

		router.ClearAllHandlers()
		router.Broadcast(buttonPressed{})

		Expect(router.NumHandlers()).To(Equal(0))
		Expect(received).To(BeEmpty())
	})

	It("should refuse nil types", func() {
		Expect(func() { router.Register(nil, func(any) {}) }).To(Panic())
	})
})
