package cache

import (
	"sync"
	"sync/atomic"

	"github.com/xraph/testhost/internal/errors"
	"github.com/xraph/testhost/internal/logger"
	"github.com/xraph/testhost/internal/metrics"
	"github.com/xraph/testhost/internal/shared"
)

// RemoteFactoryBuilder constructs the process-wide remote container factory.
// Construction is expensive (full assembly scan and compose), which is why
// the result is shared across every scope in the process.
type RemoteFactoryBuilder func() (shared.ContainerBuilder, error)

// FactoryCell is the once-initialized shared cell holding the remote
// container factory. The factory carries no per-test state, so every scope
// reuses the same instance; only its one-time construction is guarded.
type FactoryCell struct {
	mu      sync.RWMutex
	build   RemoteFactoryBuilder
	factory shared.ContainerBuilder
}

// NewFactoryCell creates an empty cell that will build on first use.
func NewFactoryCell(build RemoteFactoryBuilder) *FactoryCell {
	return &FactoryCell{build: build}
}

// Get returns the factory, constructing it on first call. Concurrent first
// callers block on the lock and all receive the same built value.
func (c *FactoryCell) Get() (shared.ContainerBuilder, error) {
	c.mu.RLock()
	if c.factory != nil {
		f := c.factory
		c.mu.RUnlock()
		return f, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring the write lock.
	if c.factory != nil {
		return c.factory, nil
	}

	f, err := c.build()
	if err != nil {
		return nil, err
	}

	c.factory = f
	return f, nil
}

// Built reports whether the factory has been constructed.
func (c *FactoryCell) Built() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.factory != nil
}

// Cache builds and memoizes the containers for one scope: at most one
// primary and at most one remote container exist per scope. The cache is
// owned by the scope's lifecycle controller and discarded with it.
type Cache struct {
	builder shared.ContainerBuilder
	cell    *FactoryCell
	log     logger.Logger
	rec     *metrics.Recorder

	primary atomic.Pointer[shared.Container]

	remoteMu sync.Mutex
	remote   shared.Container
}

// New creates a cache for one scope. The factory cell outlives the cache
// and is shared across scopes.
func New(builder shared.ContainerBuilder, cell *FactoryCell, log logger.Logger, rec *metrics.Recorder) *Cache {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Cache{
		builder: builder,
		cell:    cell,
		log:     log,
		rec:     rec,
	}
}

// GetOrCreatePrimary returns the scope's primary container for a default
// request, creating it on first call. Publication uses compare-and-swap:
// concurrent first callers may each build, but exactly one instance becomes
// visible and the losers dispose their redundant build and adopt the
// winner's. Non-default requests bypass the cache entirely, since their
// result is not interchangeable with the shared instance.
//
// Build failures propagate to the caller unchanged and are never retried.
func (c *Cache) GetOrCreatePrimary(req shared.ResolveRequest) (shared.Container, error) {
	if !req.IsDefault() {
		built, err := c.builder.BuildContainer(req)
		if err != nil {
			return nil, err
		}
		c.rec.ContainerBuilt("uncached")
		c.log.Debug("built uncached container", logger.Int("assemblies", len(req.Assemblies)))
		return built, nil
	}

	if p := c.primary.Load(); p != nil {
		return *p, nil
	}

	built, err := c.builder.BuildContainer(req)
	if err != nil {
		return nil, err
	}

	if c.primary.CompareAndSwap(nil, &built) {
		c.rec.ContainerBuilt("primary")
		c.log.Debug("published primary container")
		return built, nil
	}

	// Lost the publication race: the redundant build is discarded and the
	// winner's instance returned so every caller observes the same one.
	if derr := built.Dispose(); derr != nil {
		c.log.Warn("failed to dispose redundant primary build", logger.Err(derr))
	}
	return *c.primary.Load(), nil
}

// GetOrCreateRemote returns the scope's remote container, building it on
// first call from the process-wide factory. The whole path runs under the
// scope's remote lock: factory construction is expensive and must not run
// twice, and the per-scope remote container publishes under the same lock.
func (c *Cache) GetOrCreateRemote() (shared.Container, error) {
	c.remoteMu.Lock()
	defer c.remoteMu.Unlock()

	if c.remote != nil {
		return c.remote, nil
	}

	factory, err := c.cell.Get()
	if err != nil {
		return nil, err
	}

	built, err := factory.BuildContainer(shared.ResolveRequest{})
	if err != nil {
		return nil, err
	}

	c.rec.ContainerBuilt("remote")
	c.log.Debug("published remote container")
	c.remote = built
	return built, nil
}

// Primary returns the published primary container, or nil if the scope
// never created one.
func (c *Cache) Primary() shared.Container {
	if p := c.primary.Load(); p != nil {
		return *p
	}
	return nil
}

// Remote returns the scope's remote container, or nil.
func (c *Cache) Remote() shared.Container {
	c.remoteMu.Lock()
	defer c.remoteMu.Unlock()
	return c.remote
}

// DisposeAll disposes every container the scope created and clears the
// cached references. Disposal errors are joined and surfaced, never
// swallowed. The shared factory cell is left untouched; its lifetime is
// the process.
func (c *Cache) DisposeAll() error {
	var errs []error

	if p := c.primary.Swap(nil); p != nil {
		if err := (*p).Dispose(); err != nil {
			errs = append(errs, errors.ErrDisposeFailed("primary", err))
		}
	}

	c.remoteMu.Lock()
	remote := c.remote
	c.remote = nil
	c.remoteMu.Unlock()

	if remote != nil {
		if err := remote.Dispose(); err != nil {
			errs = append(errs, errors.ErrDisposeFailed("remote", err))
		}
	}

	return errors.Join(errs...)
}
