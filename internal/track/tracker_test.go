package track

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnabledRegistry() *Registry {
	r := NewRegistry()
	r.SetEnabled(true)
	return r
}

func waitClosed(t *testing.T, ch <-chan struct{}, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestBegin_TracksUntilDone(t *testing.T) {
	r := newEnabledRegistry()
	tr := r.Tracker("listeners")

	done := tr.Begin("refresh")
	assert.Equal(t, 1, tr.Pending())

	done()
	assert.Equal(t, 0, tr.Pending())

	// Completing twice is harmless.
	done()
	assert.Equal(t, 0, tr.Pending())
}

func TestBegin_DisabledRegistryRecordsNothing(t *testing.T) {
	r := NewRegistry()
	tr := r.Tracker("listeners")

	done := tr.Begin("refresh")
	assert.Equal(t, 0, tr.Pending())
	done()
}

func TestWaitAllComplete_AlreadyIdle(t *testing.T) {
	r := newEnabledRegistry()
	tr := r.Tracker("listeners")

	assert.True(t, waitClosed(t, tr.WaitAllComplete(), time.Second))
}

func TestWaitAllComplete_ClosesWhenLastOperationFinishes(t *testing.T) {
	r := newEnabledRegistry()
	tr := r.Tracker("listeners")

	doneA := tr.Begin("a")
	doneB := tr.Begin("b")
	ch := tr.WaitAllComplete()

	doneA()
	select {
	case <-ch:
		t.Fatal("waiter closed with one operation still pending")
	case <-time.After(20 * time.Millisecond):
	}

	doneB()
	assert.True(t, waitClosed(t, ch, time.Second))
}

func TestSchedule_RunsAfterDelayAndCompletes(t *testing.T) {
	r := newEnabledRegistry()
	tr := r.Tracker("timers")

	var ran atomic.Bool
	tr.Schedule("delayed", 10*time.Millisecond, func() { ran.Store(true) })
	require.Equal(t, 1, tr.Pending())

	assert.True(t, waitClosed(t, tr.WaitAllComplete(), time.Second))
	assert.True(t, ran.Load())
	assert.Equal(t, 0, tr.Pending())
}

func TestSchedule_CancelAloneDoesNotRelease(t *testing.T) {
	r := newEnabledRegistry()
	tr := r.Tracker("timers")

	cancel := tr.Schedule("delayed", time.Minute, nil)
	cancel()

	// Cancellation marks the operation but it stays queued.
	assert.Equal(t, 1, tr.Pending())

	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Cancelled)
}

func TestReleaseCancelledPending_PurgesWithoutWaitingOutDelay(t *testing.T) {
	r := newEnabledRegistry()
	tr := r.Tracker("timers")

	var ran atomic.Bool
	cancel := tr.Schedule("delayed", time.Minute, func() { ran.Store(true) })
	cancel()

	start := time.Now()
	tr.ReleaseCancelledPending()

	assert.Equal(t, 0, tr.Pending())
	assert.True(t, waitClosed(t, tr.WaitAllComplete(), time.Second))
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, ran.Load())
}

func TestReleaseCancelledPending_LeavesLiveOperations(t *testing.T) {
	r := newEnabledRegistry()
	tr := r.Tracker("timers")

	done := tr.Begin("live")
	cancel := tr.Schedule("doomed", time.Minute, nil)
	cancel()

	tr.ReleaseCancelledPending()
	assert.Equal(t, 1, tr.Pending())

	done()
	assert.Equal(t, 0, tr.Pending())
}

func TestRegistry_TrackerIsPerCategory(t *testing.T) {
	r := newEnabledRegistry()

	a := r.Tracker("listeners")
	b := r.Tracker("timers")
	again := r.Tracker("listeners")

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "listeners", list[0].Name())
	assert.Equal(t, "timers", list[1].Name())
}

func TestRegistry_ResetDropsEverything(t *testing.T) {
	r := newEnabledRegistry()
	tr := r.Tracker("timers")
	tr.Schedule("orphan", time.Minute, nil)
	ch := tr.WaitAllComplete()

	r.Reset()

	assert.True(t, waitClosed(t, ch, time.Second))
	assert.Empty(t, r.List())
}

func TestEncodeSnapshot_IncludesPendingOperations(t *testing.T) {
	r := newEnabledRegistry()
	tr := r.Tracker("listeners")
	defer tr.Begin("stuck")()

	encoded := EncodeSnapshot(r.List())
	assert.Contains(t, encoded, "listeners")
	assert.Contains(t, encoded, "stuck")
}
