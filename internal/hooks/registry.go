package hooks

import (
	"sync"

	"github.com/xraph/testhost/internal/errors"
	"github.com/xraph/testhost/internal/shared"
)

// PrimaryFactory obtains the primary container for a resolve request.
type PrimaryFactory func(req shared.ResolveRequest) (shared.Container, error)

// RemoteResolver obtains the remote container.
type RemoteResolver func() (shared.Container, error)

// Registry is the single slot through which production code reaches the
// current scope's containers. Exactly one scope may own the slot at a time;
// between scopes both override points are bound to stubs that fail with the
// out-of-scope error instead of silently resolving against stale state.
//
// The registry is an explicit object rather than ambient package state so
// that installation and reset points show up in signatures.
type Registry struct {
	mu      sync.RWMutex
	owner   string
	primary PrimaryFactory
	remote  RemoteResolver
}

// NewRegistry returns a registry with both override points bound to the
// failing stubs.
func NewRegistry() *Registry {
	r := &Registry{}
	r.bindStubsLocked()
	return r
}

func (r *Registry) bindStubsLocked() {
	r.owner = ""
	r.primary = func(shared.ResolveRequest) (shared.Container, error) {
		return nil, errors.ErrNoActiveScope("primary container")
	}
	r.remote = func() (shared.Container, error) {
		return nil, errors.ErrNoActiveScope("remote container")
	}
}

// Install binds both override points to the given scope's factories.
// Installing while another scope owns the slot is a caller error: tests must
// not overlap their active windows.
func (r *Registry) Install(owner string, primary PrimaryFactory, remote RemoteResolver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owner != "" {
		return errors.ErrScopeAlreadyActive(r.owner, owner)
	}

	r.owner = owner
	r.primary = primary
	r.remote = remote
	return nil
}

// SetPrimaryContainerFactory replaces the primary override point.
func (r *Registry) SetPrimaryContainerFactory(f PrimaryFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = f
}

// SetRemoteContainerResolver replaces the remote override point.
func (r *Registry) SetRemoteContainerResolver(f RemoteResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remote = f
}

// Reset restores the failing stubs and clears the owner. Safe to call when
// no scope is installed.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindStubsLocked()
}

// Owner returns the scope currently holding the slot, if any.
func (r *Registry) Owner() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner, r.owner != ""
}

// ResolvePrimary is the global "give me the container" entry point used by
// production code. It dispatches to whatever is currently installed.
func (r *Registry) ResolvePrimary(req shared.ResolveRequest) (shared.Container, error) {
	r.mu.RLock()
	f := r.primary
	r.mu.RUnlock()
	return f(req)
}

// ResolveRemote dispatches the remote container entry point.
func (r *Registry) ResolveRemote() (shared.Container, error) {
	r.mu.RLock()
	f := r.remote
	r.mu.RUnlock()
	return f()
}
