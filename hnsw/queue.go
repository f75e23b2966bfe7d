package hnsw

import "container/heap"

// item is a candidate in a priority queue: a node id and its distance from
// the query vector currently driving the search.
type item struct {
	node     uint32
	distance float32
	index    int // maintained by container/heap
}

// queue implements container/heap.Interface. When min is true it behaves as
// a min-heap (closest distance on top); otherwise as a max-heap (farthest
// distance on top). HNSW needs both behaviors from the same shape of data:
// a min-heap to pop the next candidate to explore, a max-heap to evict the
// worst of a bounded result set.
type queue struct {
	min   bool
	items []*item
}

func (q *queue) Len() int { return len(q.items) }

func (q *queue) Less(i, j int) bool {
	if q.min {
		return q.items[i].distance < q.items[j].distance
	}
	return q.items[i].distance > q.items[j].distance
}

func (q *queue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index, q.items[j].index = i, j
}

func (q *queue) Push(x any) {
	it := x.(*item)
	it.index = len(q.items)
	q.items = append(q.items, it)
}

func (q *queue) Pop() any {
	n := len(q.items)
	it := q.items[n-1]
	q.items[n-1] = nil
	it.index = -1
	q.items = q.items[:n-1]
	return it
}

// top returns the queue's head without removing it.
func (q *queue) top() *item {
	return q.items[0]
}

func newQueue(min bool) *queue {
	q := &queue{min: min}
	heap.Init(q)
	return q
}

// sortedAscending drains q (a max-heap of results) into a slice ordered
// nearest-first, as search_layer's contract requires.
func sortedAscending(q *queue) []*item {
	out := make([]*item, q.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(q).(*item)
	}
	return out
}
