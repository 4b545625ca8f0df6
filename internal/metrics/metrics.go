package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects telemetry for scope lifecycles. A nil Recorder is valid
// and records nothing, so components can take one unconditionally.
type Recorder struct {
	registry *prometheus.Registry

	scopeStarts     prometheus.Counter
	scopeEnds       prometheus.Counter
	drainTimeouts   prometheus.Counter
	containerBuilds *prometheus.CounterVec
	drainDuration   prometheus.Histogram
}

// NewRecorder creates a recorder backed by its own registry so the host
// process can expose it without colliding with application collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scopeStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "testhost_scope_starts_total",
			Help: "Number of test scopes started.",
		}),
		scopeEnds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "testhost_scope_ends_total",
			Help: "Number of test scopes torn down.",
		}),
		drainTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "testhost_drain_timeouts_total",
			Help: "Number of teardowns that hit the cleanup timeout.",
		}),
		containerBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testhost_container_builds_total",
			Help: "Number of containers built, by kind.",
		}, []string{"kind"}),
		drainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "testhost_drain_duration_seconds",
			Help:    "Time spent draining asynchronous work at teardown.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
	}

	r.registry.MustRegister(
		r.scopeStarts,
		r.scopeEnds,
		r.drainTimeouts,
		r.containerBuilds,
		r.drainDuration,
	)

	return r
}

// Registry exposes the underlying registry for scraping.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ScopeStarted records one scope beginning.
func (r *Recorder) ScopeStarted() {
	if r == nil {
		return
	}
	r.scopeStarts.Inc()
}

// ScopeEnded records one scope teardown finishing.
func (r *Recorder) ScopeEnded() {
	if r == nil {
		return
	}
	r.scopeEnds.Inc()
}

// DrainTimedOut records a teardown that exhausted the cleanup budget.
func (r *Recorder) DrainTimedOut() {
	if r == nil {
		return
	}
	r.drainTimeouts.Inc()
}

// ContainerBuilt records one container build of the given kind
// ("primary", "remote", "uncached").
func (r *Recorder) ContainerBuilt(kind string) {
	if r == nil {
		return
	}
	r.containerBuilds.WithLabelValues(kind).Inc()
}

// DrainObserved records how long a drain took.
func (r *Recorder) DrainObserved(d time.Duration) {
	if r == nil {
		return
	}
	r.drainDuration.Observe(d.Seconds())
}
