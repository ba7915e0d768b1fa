package usecase

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestWorkQueueFIFO(t *testing.T) {
	q := NewWorkQueue(zaptest.NewLogger(t))

	q.Enqueue("first")
	q.Enqueue("second")
	q.Enqueue("third")

	for _, want := range []string{"first", "second", "third"} {
		turn, ok := q.DequeueIfIdle()
		if !ok {
			t.Fatalf("Expected to dequeue %q", want)
		}
		if turn.Text != want {
			t.Errorf("Expected %q, got %q", want, turn.Text)
		}
		q.Release()
	}

	if _, ok := q.DequeueIfIdle(); ok {
		t.Error("Expected empty queue")
	}
}

func TestWorkQueueBusyGate(t *testing.T) {
	q := NewWorkQueue(zaptest.NewLogger(t))
	q.Enqueue("a")
	q.Enqueue("b")

	if _, ok := q.DequeueIfIdle(); !ok {
		t.Fatal("Expected first dequeue to succeed")
	}
	if !q.Busy() {
		t.Error("Expected queue to be busy after dequeue")
	}

	// in-flight turn blocks the next dequeue and leaves the queue intact
	if _, ok := q.DequeueIfIdle(); ok {
		t.Error("Expected dequeue to be gated while busy")
	}
	if q.Len() != 1 {
		t.Errorf("Expected 1 pending turn, got %d", q.Len())
	}

	q.Release()
	turn, ok := q.DequeueIfIdle()
	if !ok || turn.Text != "b" {
		t.Errorf("Expected to dequeue b after release, got %v %v", turn.Text, ok)
	}
}

func TestWorkQueueClear(t *testing.T) {
	q := NewWorkQueue(zaptest.NewLogger(t))
	q.Enqueue("a")
	q.DequeueIfIdle()
	q.Clear()

	if q.Busy() || q.Len() != 0 {
		t.Error("Expected cleared queue to be empty and idle")
	}
}
