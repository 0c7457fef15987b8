package reconcile

import (
	"sync"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// writeQueue is a thread-safe FIFO of session snapshots awaiting a remote
// write.
//
// Callers on the UI side enqueue without blocking; the reconciler's drain
// loop dequeues. The signal channel (buffered, size 1) coalesces wakeups so
// the drain loop can select on it alongside ctx.Done().
type writeQueue struct {
	mu     sync.Mutex
	items  []model.Session
	closed bool
	signal chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{
		items:  make([]model.Session, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a snapshot to the back of the queue.
// Returns false if the queue is closed.
func (q *writeQueue) Enqueue(s model.Session) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, s)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front snapshot without blocking.
func (q *writeQueue) TryDequeue() (model.Session, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return model.Session{}, false
	}

	s := q.items[0]
	// Release the slot so the activity slice can be collected.
	q.items[0] = model.Session{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return s, true
}

// Wait returns a channel that signals when snapshots may be available.
// It is closed by Close.
func (q *writeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued snapshots.
func (q *writeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes the drain loop.
func (q *writeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
