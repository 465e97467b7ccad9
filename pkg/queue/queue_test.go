package queue

import (
	"testing"
	"time"
)

func TestDequeueOrdersByPriorityThenTimestamp(t *testing.T) {
	q := New(nil)
	base := time.Now()

	low := &ScheduledCommand{ID: "low", Priority: 3, Timestamp: base}
	highLater := &ScheduledCommand{ID: "high-later", Priority: 1, Timestamp: base.Add(time.Second)}
	highEarlier := &ScheduledCommand{ID: "high-earlier", Priority: 1, Timestamp: base}
	mid := &ScheduledCommand{ID: "mid", Priority: 2, Timestamp: base}

	q.Enqueue(low)
	q.Enqueue(highLater)
	q.Enqueue(highEarlier)
	q.Enqueue(mid)

	want := []string{"high-earlier", "high-later", "mid", "low"}
	for _, id := range want {
		cmd, ok := q.Dequeue()
		if !ok {
			t.Fatalf("expected a command, queue empty")
		}
		if cmd.ID != id {
			t.Fatalf("Dequeue() = %s, want %s", cmd.ID, id)
		}
	}

	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestLenTracksEnqueueDequeue(t *testing.T) {
	q := New(nil)
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
	q.Enqueue(&ScheduledCommand{ID: "a", Priority: 1})
	q.Enqueue(&ScheduledCommand{ID: "b", Priority: 2})
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	q.Dequeue()
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
}
