package engine

import "firestige.xyz/shipswitch/internal/core"

// Queue collects the traffic items of one dispatcher iteration in decision order.
type Queue struct {
	items []core.TrafficItem
}

// NewQueue returns a queue with room for capacity items.
func NewQueue(capacity int) *Queue {
	return &Queue{items: make([]core.TrafficItem, 0, capacity)}
}

func (q *Queue) Push(item core.TrafficItem) {
	q.items = append(q.items, item)
}

// Items returns the queued items. The slice is reused after Reset.
func (q *Queue) Items() []core.TrafficItem {
	return q.items
}

func (q *Queue) Len() int {
	return len(q.items)
}

// Reset empties the queue, keeping its storage and dropping frame references.
func (q *Queue) Reset() {
	for i := range q.items {
		q.items[i] = core.TrafficItem{}
	}
	q.items = q.items[:0]
}
