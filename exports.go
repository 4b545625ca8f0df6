package testhost

import (
	"github.com/xraph/testhost/internal/cache"
	"github.com/xraph/testhost/internal/config"
	"github.com/xraph/testhost/internal/dispatch"
	"github.com/xraph/testhost/internal/drain"
	"github.com/xraph/testhost/internal/logger"
	"github.com/xraph/testhost/internal/shared"
	"github.com/xraph/testhost/internal/track"
)

// Container is an opaque, disposable handle to a resolved composition graph.
type Container = shared.Container

// ResolveRequest describes one container request; the zero value is the
// default, cacheable request.
type ResolveRequest = shared.ResolveRequest

// ContainerBuilder composes containers from an assembly set.
type ContainerBuilder = shared.ContainerBuilder

// ContainerBuilderFunc adapts a function to ContainerBuilder.
type ContainerBuilderFunc = shared.ContainerBuilderFunc

// RemoteFactoryBuilder constructs the process-wide remote container factory.
type RemoteFactoryBuilder = cache.RemoteFactoryBuilder

// Tracker observes one category of in-flight asynchronous operations.
type Tracker = shared.Tracker

// OperationInfo describes one pending asynchronous operation.
type OperationInfo = shared.OperationInfo

// DispatchQueue is the single-threaded scheduling primitive pumped during
// drain.
type DispatchQueue = shared.DispatchQueue

// Queue is the headless serial dispatch queue implementation.
type Queue = dispatch.Queue

// NewQueue creates an empty serial dispatch queue.
var NewQueue = dispatch.NewQueue

// TrackingRegistry is the process-wide asynchronous-operation bookkeeping.
type TrackingRegistry = track.Registry

// DrainState is the drain controller's lifecycle state.
type DrainState = drain.State

// Drain controller states.
const (
	DrainIdle     = drain.Idle
	DrainDraining = drain.Draining
	DrainDrained  = drain.Drained
	DrainTimedOut = drain.TimedOut
)

// DefaultCleanupTimeout bounds one whole teardown drain.
const DefaultCleanupTimeout = drain.DefaultCleanupTimeout

// Options holds the host tunables.
type Options = config.Options

// DefaultOptions returns the options used when nothing is configured.
var DefaultOptions = config.Default

// LoadOptions reads options from .testhost.yaml and TESTHOST_* environment
// variables.
var LoadOptions = config.Load

// Logger is the structured logging interface.
type Logger = logger.Logger

// NewLogger creates a logger from configuration.
var NewLogger = logger.NewLogger

// NewNoopLogger creates a silent logger for tests.
var NewNoopLogger = logger.NewNoopLogger

// LoggingConfig configures the logger.
type LoggingConfig = logger.LoggingConfig
