package shared

import (
	"context"
	"time"
)

// Container is an opaque handle to a resolved service composition graph.
// Containers are disposable; a scope disposes every container it created
// during teardown.
type Container interface {
	// Resolve returns a composed service by name.
	Resolve(name string) (any, error)

	// Dispose releases every service held by the container.
	Dispose() error
}

// ResolveRequest describes one request for a container. The zero value is
// the default request; a request naming explicit assemblies bypasses the
// per-scope cache.
type ResolveRequest struct {
	// Assemblies restricts composition to an explicit assembly set.
	// Empty means "use the host defaults".
	Assemblies []string
}

// IsDefault reports whether the request can be served from the scope cache.
func (r ResolveRequest) IsDefault() bool {
	return len(r.Assemblies) == 0
}

// ContainerBuilder composes a container from an assembly set. Builders are
// external collaborators; build failures propagate to the caller unchanged.
type ContainerBuilder interface {
	BuildContainer(req ResolveRequest) (Container, error)
}

// ContainerBuilderFunc adapts a function to the ContainerBuilder interface.
type ContainerBuilderFunc func(req ResolveRequest) (Container, error)

func (f ContainerBuilderFunc) BuildContainer(req ResolveRequest) (Container, error) {
	return f(req)
}

// Tracker observes a set of in-flight asynchronous operations registered
// during a scope. The drain controller only queries and awaits trackers;
// it never owns them.
type Tracker interface {
	// Name identifies the tracker category in diagnostics.
	Name() string

	// Pending returns the number of operations not yet complete.
	Pending() int

	// WaitAllComplete returns a channel closed once every tracked
	// operation has completed.
	WaitAllComplete() <-chan struct{}

	// ReleaseCancelledPending immediately removes operations that were
	// cancelled but are still queued behind a scheduled delay.
	ReleaseCancelledPending()

	// Snapshot lists the operations still pending, for timeout diagnostics.
	Snapshot() []OperationInfo
}

// OperationInfo describes one pending asynchronous operation.
type OperationInfo struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Age       time.Duration `json:"age_ns"`
	Cancelled bool          `json:"cancelled"`
}

// DispatchQueue is a single-threaded scheduling primitive whose queued work
// must be serviced for tracked operations to progress. The drain controller
// pumps it while waiting.
type DispatchQueue interface {
	// RunReady executes everything currently queued on the calling
	// goroutine and returns the number of items run.
	RunReady() int

	// PumpUntil drives RunReady until pred reports true or ctx is done.
	PumpUntil(ctx context.Context, pred func() bool) error
}
