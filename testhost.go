// Package testhost gives each test its own isolated service container while
// production code keeps resolving through the same global entry points it
// uses in real execution. A Host owns the process-wide pieces (hook slot,
// operation tracking, the shared remote container factory); each test gets a
// Scope that lazily builds containers, drains asynchronous work at teardown,
// and restores the fail-fast baseline whether the test passed or not.
package testhost

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/testhost/internal/cache"
	"github.com/xraph/testhost/internal/config"
	"github.com/xraph/testhost/internal/dispatch"
	"github.com/xraph/testhost/internal/errors"
	"github.com/xraph/testhost/internal/hooks"
	"github.com/xraph/testhost/internal/logger"
	"github.com/xraph/testhost/internal/metrics"
	"github.com/xraph/testhost/internal/shared"
	"github.com/xraph/testhost/internal/track"
)

const tracerName = "github.com/xraph/testhost"

// HostConfig configures a Host.
type HostConfig struct {
	// Builder composes primary containers. Required.
	Builder shared.ContainerBuilder

	// RemoteFactory constructs the process-wide remote container factory
	// on first remote resolution. Optional; without it remote resolution
	// fails with the builder's absence.
	RemoteFactory cache.RemoteFactoryBuilder

	// Queue is the serial dispatch queue drained work may depend on.
	// Optional; defaults to a fresh headless queue.
	Queue *dispatch.Queue

	// Logger defaults to a logger at the configured level.
	Logger logger.Logger

	// Options defaults to config.Load() (file and environment) when zero.
	Options *config.Options

	// TracerProvider defaults to the global otel provider.
	TracerProvider trace.TracerProvider
}

// Host owns the process-wide state scopes share: the hook registry slot,
// the operation-tracking registry, the once-built remote container factory,
// and telemetry. One Host serves a whole test binary; scopes come and go.
type Host struct {
	opts    config.Options
	log     logger.Logger
	rec     *metrics.Recorder
	hooks   *hooks.Registry
	tracing *track.Registry
	cell    *cache.FactoryCell
	builder shared.ContainerBuilder
	queue   *dispatch.Queue
	tracer  trace.Tracer

	mu     sync.Mutex
	active *Scope
}

// NewHost creates a host. The remote factory cell is created empty and
// built at most once for the host's lifetime.
func NewHost(cfg HostConfig) (*Host, error) {
	if cfg.Builder == nil {
		return nil, errors.ErrLifecycleError("host init", errors.New("container builder is required"))
	}

	opts := config.Default()
	if cfg.Options != nil {
		opts = *cfg.Options
	} else {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		opts = loaded
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewLogger(logger.LoggingConfig{Level: opts.LogLevel})
	}
	log = log.Named("testhost")

	var rec *metrics.Recorder
	if opts.MetricsEnabled {
		rec = metrics.NewRecorder()
	}

	queue := cfg.Queue
	if queue == nil {
		queue = dispatch.NewQueue()
	}

	remoteFactory := cfg.RemoteFactory
	if remoteFactory == nil {
		remoteFactory = func() (shared.ContainerBuilder, error) {
			return nil, errors.ErrLifecycleError("remote resolution", errors.New("no remote factory configured"))
		}
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Host{
		opts:    opts,
		log:     log,
		rec:     rec,
		hooks:   hooks.NewRegistry(),
		tracing: track.NewRegistry(),
		cell:    cache.NewFactoryCell(remoteFactory),
		builder: cfg.Builder,
		queue:   queue,
		tracer:  tp.Tracer(tracerName),
	}, nil
}

// Options returns the host's effective options.
func (h *Host) Options() config.Options {
	return h.opts
}

// Hooks exposes the hook registry: the slot production code resolves
// through. Callers normally use Container and RemoteContainer instead.
func (h *Host) Hooks() *hooks.Registry {
	return h.hooks
}

// Tracking exposes the operation-tracking registry so production code can
// register asynchronous work.
func (h *Host) Tracking() *track.Registry {
	return h.tracing
}

// Queue exposes the serial dispatch queue pumped during drain.
func (h *Host) Queue() *dispatch.Queue {
	return h.queue
}

// Metrics returns the recorder, or nil when metrics are disabled.
func (h *Host) Metrics() *metrics.Recorder {
	return h.rec
}

// Container is the global "give me the container" entry point. Inside an
// active scope it returns the scope's memoized primary container; outside
// any scope it fails with the out-of-scope error.
func (h *Host) Container() (shared.Container, error) {
	return h.hooks.ResolvePrimary(shared.ResolveRequest{})
}

// ContainerFor resolves with an explicit request. Non-default requests are
// built fresh and uncached.
func (h *Host) ContainerFor(req shared.ResolveRequest) (shared.Container, error) {
	return h.hooks.ResolvePrimary(req)
}

// RemoteContainer resolves the scope's remote container, building the
// shared remote factory on first use across the whole process.
func (h *Host) RemoteContainer() (shared.Container, error) {
	return h.hooks.ResolveRemote()
}
