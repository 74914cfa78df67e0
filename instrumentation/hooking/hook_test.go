package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var pos = &HookPos{Name: "Test"}

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		hookable *HookableBase
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		hookable = NewHookableBase()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should invoke hooks in registration order", func() {
		hook1 := NewMockHook(mockCtrl)
		hook2 := NewMockHook(mockCtrl)
		ctx := HookCtx{Domain: hookable, Pos: pos, Item: 42}

		first := hook1.EXPECT().Func(ctx)
		hook2.EXPECT().Func(ctx).After(first)

		hookable.AcceptHook(hook1)
		hookable.AcceptHook(hook2)
		hookable.InvokeHook(ctx)

		Expect(hookable.NumHooks()).To(Equal(2))
	})

	It("should panic on duplicated hooks", func() {
		hook := NewMockHook(mockCtrl)
		hookable.AcceptHook(hook)

		Expect(func() { hookable.AcceptHook(hook) }).To(Panic())
	})

	It("should accept function hooks", func() {
		called := 0
		hookable.AcceptHook(HookFunc(func(HookCtx) { called++ }))
		hookable.AcceptHook(HookFunc(func(HookCtx) { called++ }))

		hookable.InvokeHook(HookCtx{Pos: pos})

		Expect(called).To(Equal(2))
	})

	It("should return a copy of the hook list", func() {
		hookable.AcceptHook(NewMockHook(mockCtrl))

		hooks := hookable.Hooks()
		hooks[0] = nil

		Expect(hookable.Hooks()[0]).NotTo(BeNil())
	})
})
