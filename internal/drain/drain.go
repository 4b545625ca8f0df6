package drain

import (
	"context"
	"time"

	"github.com/xraph/testhost/internal/errors"
	"github.com/xraph/testhost/internal/logger"
	"github.com/xraph/testhost/internal/metrics"
	"github.com/xraph/testhost/internal/shared"
	"github.com/xraph/testhost/internal/track"
)

// State is the drain controller's lifecycle state.
type State int

const (
	// Idle means no drain has run yet.
	Idle State = iota
	// Draining means a drain is in progress.
	Draining
	// Drained means all tracked work settled within the budget.
	Drained
	// TimedOut means the budget expired with work still pending.
	TimedOut
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	case Drained:
		return "drained"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// DefaultCleanupTimeout bounds one whole drain.
const DefaultCleanupTimeout = 15 * time.Second

// DefaultPollInterval is how long the waiter is raced against between pumps.
const DefaultPollInterval = 50 * time.Millisecond

// Config configures a drain controller.
type Config struct {
	// CleanupTimeout is the wall-clock budget for the whole drain.
	CleanupTimeout time.Duration

	// PollInterval is the delay raced against the waiter between pumps.
	PollInterval time.Duration

	// Queue is the serial dispatch queue serviced while waiting. Nil means
	// there is nothing to pump.
	Queue shared.DispatchQueue

	Logger   logger.Logger
	Recorder *metrics.Recorder
}

// Controller brings the count of in-flight operations registered during a
// scope to zero, or fails if that cannot happen within the budget.
// Operations are expected to self-cancel cooperatively when the test ends;
// the controller only waits for that shutdown to finish while detecting
// hangs.
type Controller struct {
	timeout time.Duration
	poll    time.Duration
	queue   shared.DispatchQueue
	log     logger.Logger
	rec     *metrics.Recorder
	state   State
}

// NewController creates a controller in the Idle state.
func NewController(cfg Config) *Controller {
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = DefaultCleanupTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}
	return &Controller{
		timeout: cfg.CleanupTimeout,
		poll:    cfg.PollInterval,
		queue:   cfg.Queue,
		log:     cfg.Logger,
		rec:     cfg.Recorder,
		state:   Idle,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	return c.state
}

// Drain purges cancelled-but-queued operations, then waits for everything
// else to complete, pumping the dispatch queue so operations that need the
// pumping thread can progress. Exceeding the budget is fatal: the caller is
// expected to fail the test, not retry.
func (c *Controller) Drain(trackers []shared.Tracker) error {
	c.state = Draining
	start := time.Now()

	// Purge strictly precedes the wait: a cancelled operation queued
	// behind its original delay would otherwise count as pending until
	// the delay elapsed.
	for _, t := range trackers {
		t.ReleaseCancelledPending()
	}

	waiter := waitAll(trackers)
	deadline := start.Add(c.timeout)

	for {
		select {
		case <-waiter:
			c.state = Drained
			elapsed := time.Since(start)
			c.rec.DrainObserved(elapsed)
			c.log.Debug("drain complete", logger.Duration("elapsed", elapsed))
			return nil
		default:
		}

		if !time.Now().Before(deadline) {
			return c.timedOut(trackers, start)
		}

		if c.queue != nil {
			c.queue.RunReady()
		}

		select {
		case <-waiter:
			// Loop once more to take the drained path.
		case <-time.After(c.poll):
		}
	}
}

// DrainContext is Drain bounded additionally by ctx, for callers that carry
// their own cancellation.
func (c *Controller) DrainContext(ctx context.Context, trackers []shared.Tracker) error {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < c.timeout {
			saved := c.timeout
			c.timeout = remaining
			defer func() { c.timeout = saved }()
		}
	}
	return c.Drain(trackers)
}

func (c *Controller) timedOut(trackers []shared.Tracker, start time.Time) error {
	c.state = TimedOut
	elapsed := time.Since(start)
	c.rec.DrainObserved(elapsed)
	c.rec.DrainTimedOut()

	pending := 0
	for _, t := range trackers {
		pending += t.Pending()
	}

	snapshot := track.EncodeSnapshot(trackers)
	c.log.Error("drain timed out",
		logger.Duration("elapsed", elapsed),
		logger.Int("pending", pending),
		logger.String("operations", snapshot),
	)

	return errors.ErrDrainTimeout(c.timeout, pending).
		WithContext("elapsed", elapsed.String()).
		WithContext("operations", snapshot)
}

// waitAll combines every tracker's waiter into one channel. The goroutine
// unblocks when all trackers settle or when their registry is reset.
func waitAll(trackers []shared.Tracker) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for _, t := range trackers {
			<-t.WaitAllComplete()
		}
		close(done)
	}()
	return done
}
