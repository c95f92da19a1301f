// Package queue implements the priority queue backing the task scheduler:
// a container/heap min-heap ordered so the highest-priority, earliest
// submitted task always pops first.
package queue

import "container/heap"

// Item is one queued unit of work. Priority is caller-defined (higher runs
// first); Sequence is assigned by Queue.Push in submission order and used
// to break priority ties FIFO.
type Item struct {
	ID       string
	Priority int
	Sequence uint64
	Payload  interface{}

	index int
}

type heapSlice []*Item

func (h heapSlice) Len() int { return len(h) }

func (h heapSlice) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].Sequence < h[j].Sequence
}

func (h heapSlice) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *heapSlice) Push(x interface{}) {
	item := x.(*Item)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *heapSlice) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Queue is a priority queue of Items, safe only for single-owner use — the
// scheduler is responsible for synchronizing access with its own mutex, the
// same way a caller of container/list must synchronize LRUCache access.
type Queue struct {
	items heapSlice
	seq   uint64
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{items: make(heapSlice, 0)}
	heap.Init(&q.items)
	return q
}

// Push enqueues an item at the given priority, assigning it the next
// submission sequence number for FIFO tie-breaking.
func (q *Queue) Push(id string, priority int, payload interface{}) *Item {
	q.seq++
	item := &Item{ID: id, Priority: priority, Sequence: q.seq, Payload: payload}
	heap.Push(&q.items, item)
	return item
}

// Pop removes and returns the highest-priority item, or nil if empty.
func (q *Queue) Pop() *Item {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*Item)
}

// Peek returns the highest-priority item without removing it, or nil.
func (q *Queue) Peek() *Item {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}
