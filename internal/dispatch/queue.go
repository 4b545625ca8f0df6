package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/testhost/internal/shared"
)

// Queue is a headless serial work queue: callbacks post from any goroutine,
// but only run when some goroutine pumps the queue. It stands in for a
// UI-thread message loop in environments where tracked operations must run
// on one designated logical thread.
type Queue struct {
	mu    sync.Mutex
	items []func()
}

var _ shared.DispatchQueue = (*Queue)(nil)

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Post enqueues fn for the next pump. Post never blocks.
func (q *Queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()
}

// Len returns the number of callbacks not yet run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// RunReady executes everything queued at the time of the call on the
// calling goroutine and returns how many items ran. Callbacks posted while
// RunReady executes wait for the next pump.
func (q *Queue) RunReady() int {
	q.mu.Lock()
	ready := q.items
	q.items = nil
	q.mu.Unlock()

	for _, fn := range ready {
		fn()
	}
	return len(ready)
}

// PumpUntil drives RunReady until pred reports true or ctx is done.
// Between empty passes it sleeps briefly rather than spinning.
func (q *Queue) PumpUntil(ctx context.Context, pred func() bool) error {
	for {
		if pred() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if q.RunReady() > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}
