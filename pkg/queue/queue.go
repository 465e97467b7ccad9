// Package queue implements the control plane's priority queue: a
// container/heap binary heap ordered by (priority, timestamp), adapted
// from a worker-pool request queue to this spec's closed priority set
// {1,2,3} and single-worker poll loop.
package queue

import (
	"container/heap"
	"sync"

	"github.com/wisbric/kubeops/pkg/execstate"
)

// heapSlice implements heap.Interface over *ScheduledCommand, ordered by
// (Priority asc, Timestamp asc) — invariant I3.
type heapSlice []*ScheduledCommand

func (h heapSlice) Len() int { return len(h) }

func (h heapSlice) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Timestamp.Before(h[j].Timestamp)
}

func (h heapSlice) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *heapSlice) Push(x any) {
	*h = append(*h, x.(*ScheduledCommand))
}

func (h *heapSlice) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is a thread-safe priority queue of ScheduledCommands. Every
// Enqueue/Dequeue publishes the new length to an execstate.Registry so
// status queries can observe it without touching the queue's own lock.
type Queue struct {
	mu    sync.Mutex
	heap  heapSlice
	state *execstate.Registry
}

// New returns an empty Queue. state may be nil in tests that don't care
// about observability.
func New(state *execstate.Registry) *Queue {
	q := &Queue{state: state}
	heap.Init(&q.heap)
	return q
}

// Enqueue adds cmd to the queue.
func (q *Queue) Enqueue(cmd *ScheduledCommand) {
	q.mu.Lock()
	heap.Push(&q.heap, cmd)
	n := len(q.heap)
	q.mu.Unlock()

	q.publishLength(n)
}

// Dequeue removes and returns the highest-priority, earliest-queued
// command. ok is false if the queue is empty.
func (q *Queue) Dequeue() (cmd *ScheduledCommand, ok bool) {
	q.mu.Lock()
	if len(q.heap) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	cmd = heap.Pop(&q.heap).(*ScheduledCommand)
	n := len(q.heap)
	q.mu.Unlock()

	q.publishLength(n)
	return cmd, true
}

// Len reports the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

func (q *Queue) publishLength(n int) {
	if q.state != nil {
		q.state.SetQueueLength(n)
	}
}
