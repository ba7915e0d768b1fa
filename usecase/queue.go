package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orbvoice/orb/domain/entities"
)

// WorkQueue is the unbounded FIFO of pending turn texts between the dedup
// poller (producer) and the turn processor (consumer). It also owns the
// busy flag so that "pop the head" and "mark a turn in flight" are one
// atomic step: the processor can never hold two turns at once.
type WorkQueue struct {
	mu     sync.Mutex
	items  []entities.QueuedTurn
	busy   bool
	logger *zap.Logger
}

// NewWorkQueue creates an empty work queue.
func NewWorkQueue(logger *zap.Logger) *WorkQueue {
	return &WorkQueue{logger: logger}
}

// Enqueue appends text to the tail. Network-derived deltas and operator
// "instant test" input both come through here, so manual input dequeues
// after any earlier pending turns.
func (q *WorkQueue) Enqueue(text string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, entities.QueuedTurn{Text: text, EnqueuedAt: time.Now()})
	q.logger.Debug("Turn enqueued", zap.Int("pending", len(q.items)))
}

// DequeueIfIdle removes and returns the head only when no turn is in
// flight, marking the returned turn busy. Returns false and leaves the
// queue untouched otherwise.
func (q *WorkQueue) DequeueIfIdle() (entities.QueuedTurn, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.busy || len(q.items) == 0 {
		return entities.QueuedTurn{}, false
	}

	turn := q.items[0]
	q.items = q.items[1:]
	q.busy = true
	return turn, true
}

// Release clears the busy flag once the in-flight turn fully completed
// (success, empty result or fatal failure).
func (q *WorkQueue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.busy = false
}

// Busy reports whether a turn is currently in flight.
func (q *WorkQueue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Len returns the number of pending turns, not counting one in flight.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops all pending turns and the busy flag. Used when monitoring is
// toggled off.
func (q *WorkQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.busy = false
}
