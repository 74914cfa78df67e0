package timing

import "container/heap"

// eventQueue is a priority queue ordered by (Time, IsSecondary, seq). It is
// not synchronized; the engine guards it.
type eventQueue struct {
	events eventHeap
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.events = make([]*Event, 0)
	heap.Init(&q.events)

	return q
}

func (q *eventQueue) Push(evt *Event) {
	heap.Push(&q.events, evt)
}

func (q *eventQueue) Pop() *Event {
	if q.events.Len() == 0 {
		return nil
	}

	return heap.Pop(&q.events).(*Event)
}

func (q *eventQueue) Peek() *Event {
	if q.events.Len() == 0 {
		return nil
	}

	return q.events[0]
}

func (q *eventQueue) Len() int {
	return q.events.Len()
}

type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

// Less determines the order between two events. Same-time events keep their
// submission order, which is what makes a run reproducible.
func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}

	if h[i].IsSecondary != h[j].IsSecondary {
		return !h[i].IsSecondary
	}

	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x any) {
	evt := x.(*Event)
	*h = append(*h, evt)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return evt
}
