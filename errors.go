package testhost

import (
	"github.com/xraph/testhost/internal/errors"
)

// HostError is the structured error type used across the host.
type HostError = errors.HostError

// Re-export error constructors.
var (
	ErrNoActiveScope      = errors.ErrNoActiveScope
	ErrScopeAlreadyActive = errors.ErrScopeAlreadyActive
	ErrDrainTimeout       = errors.ErrDrainTimeout
	ErrBuildFailed        = errors.ErrBuildFailed
	ErrDisposeFailed      = errors.ErrDisposeFailed
)

// Re-export sentinel errors for comparison with errors.Is().
var (
	ErrNoActiveScopeSentinel      = errors.ErrNoActiveScopeSentinel
	ErrScopeAlreadyActiveSentinel = errors.ErrScopeAlreadyActiveSentinel
	ErrDrainTimeoutSentinel       = errors.ErrDrainTimeoutSentinel
	ErrBuildFailedSentinel        = errors.ErrBuildFailedSentinel
	ErrDisposeFailedSentinel      = errors.ErrDisposeFailedSentinel
)

// Re-export error classification helpers.
var (
	IsNoActiveScope      = errors.IsNoActiveScope
	IsScopeAlreadyActive = errors.IsScopeAlreadyActive
	IsDrainTimeout       = errors.IsDrainTimeout
	IsBuildFailed        = errors.IsBuildFailed
)
