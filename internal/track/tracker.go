package track

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/xraph/testhost/internal/shared"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Registry is the process-wide bookkeeping for asynchronous operations.
// Tracking is gated by a global flag that the scope lifecycle flips on at
// start and off at teardown; outside a scope nothing is recorded.
type Registry struct {
	enabled atomic.Bool

	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewRegistry creates an empty registry with tracking disabled.
func NewRegistry() *Registry {
	return &Registry{trackers: make(map[string]*Tracker)}
}

// SetEnabled flips the global tracking flag.
func (r *Registry) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
}

// Enabled reports whether operations are currently being recorded.
func (r *Registry) Enabled() bool {
	return r.enabled.Load()
}

// Tracker returns the tracker for a category, creating it on first use.
func (r *Registry) Tracker(category string) *Tracker {
	r.mu.RLock()
	t, ok := r.trackers[category]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trackers[category]; ok {
		return t
	}
	t = &Tracker{
		name:     category,
		registry: r,
		ops:      make(map[string]*operation),
	}
	r.trackers[category] = t
	return t
}

// List returns every tracker category created so far.
func (r *Registry) List() []shared.Tracker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.trackers))
	for name := range r.trackers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]shared.Tracker, 0, len(names))
	for _, name := range names {
		out = append(out, r.trackers[name])
	}
	return out
}

// Reset drops every tracker, stopping any timers still queued. The scope
// lifecycle calls it after teardown so the next scope starts clean.
func (r *Registry) Reset() {
	r.mu.Lock()
	trackers := r.trackers
	r.trackers = make(map[string]*Tracker)
	r.mu.Unlock()

	for _, t := range trackers {
		t.drop()
	}
}

// operation is one in-flight asynchronous unit of work.
type operation struct {
	id        string
	name      string
	started   time.Time
	cancelled bool
	timer     *time.Timer
}

// Tracker records the in-flight operations of one category.
type Tracker struct {
	name     string
	registry *Registry

	mu      sync.Mutex
	ops     map[string]*operation
	waiters []chan struct{}
}

var _ shared.Tracker = (*Tracker)(nil)

// Name identifies the tracker category.
func (t *Tracker) Name() string { return t.name }

// Begin registers an operation and returns its completion callback. When
// tracking is disabled the operation is not recorded and the callback is a
// no-op.
func (t *Tracker) Begin(name string) func() {
	if !t.registry.Enabled() {
		return func() {}
	}

	op := &operation{
		id:      uuid.NewString(),
		name:    name,
		started: time.Now(),
	}

	t.mu.Lock()
	t.ops[op.id] = op
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.complete(op.id) })
	}
}

// Schedule queues fn to run after delay, tracked as pending for the whole
// wait. The returned cancel marks the operation cancelled but does not
// remove it from the queue: a cancelled-but-queued operation still counts
// as pending until ReleaseCancelledPending purges it or its delay elapses.
func (t *Tracker) Schedule(name string, delay time.Duration, fn func()) (cancel func()) {
	if !t.registry.Enabled() {
		return func() {}
	}

	op := &operation{
		id:      uuid.NewString(),
		name:    name,
		started: time.Now(),
	}

	t.mu.Lock()
	t.ops[op.id] = op
	op.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, live := t.ops[op.id]
		cancelled := op.cancelled
		t.mu.Unlock()
		if live && !cancelled && fn != nil {
			fn()
		}
		t.complete(op.id)
	})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		op.cancelled = true
		t.mu.Unlock()
	}
}

// Pending returns the number of operations not yet complete.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// WaitAllComplete returns a channel closed once every tracked operation has
// completed. If nothing is pending the channel is already closed.
func (t *Tracker) WaitAllComplete() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan struct{})
	if len(t.ops) == 0 {
		close(ch)
		return ch
	}
	t.waiters = append(t.waiters, ch)
	return ch
}

// ReleaseCancelledPending immediately purges operations that were cancelled
// but are still queued behind their scheduled delay. Without this, a
// cancelled 60s timer would stall drain for the full minute.
func (t *Tracker) ReleaseCancelledPending() {
	t.mu.Lock()
	for id, op := range t.ops {
		if !op.cancelled {
			continue
		}
		if op.timer != nil {
			op.timer.Stop()
		}
		delete(t.ops, id)
	}
	t.notifyLocked()
	t.mu.Unlock()
}

// Snapshot lists still-pending operations, oldest first.
func (t *Tracker) Snapshot() []shared.OperationInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	out := make([]shared.OperationInfo, 0, len(t.ops))
	for _, op := range t.ops {
		out = append(out, shared.OperationInfo{
			ID:        op.id,
			Name:      op.name,
			Age:       now.Sub(op.started),
			Cancelled: op.cancelled,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Age > out[j].Age })
	return out
}

func (t *Tracker) complete(id string) {
	t.mu.Lock()
	delete(t.ops, id)
	t.notifyLocked()
	t.mu.Unlock()
}

// notifyLocked closes all waiters once the pending set is empty.
func (t *Tracker) notifyLocked() {
	if len(t.ops) != 0 {
		return
	}
	for _, ch := range t.waiters {
		close(ch)
	}
	t.waiters = nil
}

// drop stops queued timers and releases all waiters unconditionally.
func (t *Tracker) drop() {
	t.mu.Lock()
	for id, op := range t.ops {
		if op.timer != nil {
			op.timer.Stop()
		}
		delete(t.ops, id)
	}
	t.notifyLocked()
	t.mu.Unlock()
}

// EncodeSnapshot renders pending-operation diagnostics for error context.
func EncodeSnapshot(trackers []shared.Tracker) string {
	snapshot := make(map[string][]shared.OperationInfo)
	for _, t := range trackers {
		if ops := t.Snapshot(); len(ops) > 0 {
			snapshot[t.Name()] = ops
		}
	}
	encoded, err := json.MarshalToString(snapshot)
	if err != nil {
		return ""
	}
	return encoded
}
