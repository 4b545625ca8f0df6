package errors

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// ERROR CODES
// =============================================================================

// Error code constants for structured errors
const (
	CodeNoActiveScope      = "NO_ACTIVE_SCOPE"
	CodeScopeAlreadyActive = "SCOPE_ALREADY_ACTIVE"
	CodeDrainTimeout       = "DRAIN_TIMEOUT"
	CodeBuildFailed        = "BUILD_FAILED"
	CodeDisposeFailed      = "DISPOSE_FAILED"
	CodeLifecycleError     = "LIFECYCLE_ERROR"
	CodeConfigError        = "CONFIG_ERROR"
)

// =============================================================================
// HOST ERROR (STRUCTURED ERROR)
// =============================================================================

// HostError represents a structured error with context
type HostError struct {
	Code      string
	Message   string
	Cause     error
	Timestamp time.Time
	Context   map[string]interface{}
}

func (e *HostError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *HostError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is interface for HostError
// Compares by error code, allowing matching against sentinel errors
func (e *HostError) Is(target error) bool {
	t, ok := target.(*HostError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// WithContext adds context to the error
func (e *HostError) WithContext(key string, value interface{}) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ErrNoActiveScope creates the fail-fast error returned by the hook stubs
// when the global container accessor is used outside an active scope.
func ErrNoActiveScope(accessor string) *HostError {
	return &HostError{
		Code:      CodeNoActiveScope,
		Message:   "cannot create host services after test teardown: no active scope for '" + accessor + "'",
		Cause:     nil,
		Timestamp: time.Now(),
		Context:   map[string]interface{}{"accessor": accessor},
	}
}

// ErrScopeAlreadyActive creates the error raised when a scope installs its
// hooks while another scope still owns them.
func ErrScopeAlreadyActive(current, requested string) *HostError {
	return &HostError{
		Code:      CodeScopeAlreadyActive,
		Message:   fmt.Sprintf("scope '%s' is still active, cannot install hooks for scope '%s'", current, requested),
		Cause:     nil,
		Timestamp: time.Now(),
		Context:   map[string]interface{}{"current_scope": current, "requested_scope": requested},
	}
}

// ErrDrainTimeout creates the fatal error raised when pending asynchronous
// work does not settle within the cleanup budget.
func ErrDrainTimeout(timeout time.Duration, pending int) *HostError {
	return &HostError{
		Code:      CodeDrainTimeout,
		Message:   fmt.Sprintf("failed to clean up listeners in a timely manner: %d operation(s) still pending after %s", pending, timeout),
		Cause:     nil,
		Timestamp: time.Now(),
		Context:   map[string]interface{}{"timeout": timeout.String(), "pending": pending},
	}
}

// ErrBuildFailed wraps a container build failure. The cause is preserved
// unchanged for callers matching on the underlying error.
func ErrBuildFailed(kind string, cause error) *HostError {
	return &HostError{
		Code:      CodeBuildFailed,
		Message:   "failed to build " + kind + " container",
		Cause:     cause,
		Timestamp: time.Now(),
		Context:   map[string]interface{}{"kind": kind},
	}
}

// ErrDisposeFailed wraps container disposal failures surfaced during teardown.
func ErrDisposeFailed(kind string, cause error) *HostError {
	return &HostError{
		Code:      CodeDisposeFailed,
		Message:   "failed to dispose " + kind + " container",
		Cause:     cause,
		Timestamp: time.Now(),
		Context:   map[string]interface{}{"kind": kind},
	}
}

// ErrLifecycleError creates a lifecycle error
func ErrLifecycleError(phase string, cause error) *HostError {
	return &HostError{
		Code:      CodeLifecycleError,
		Message:   "lifecycle error during " + phase,
		Cause:     cause,
		Timestamp: time.Now(),
		Context:   map[string]interface{}{"phase": phase},
	}
}

// ErrConfigError creates a config error
func ErrConfigError(message string, cause error) *HostError {
	return &HostError{
		Code:      CodeConfigError,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// =============================================================================
// STANDARD ERRORS PACKAGE INTEGRATION
// =============================================================================

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is from the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target, and if so,
// sets target to that error value and returns true. Otherwise, it returns false.
// This is a convenience wrapper around errors.As from the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
// This is a convenience wrapper around errors.New from the standard library.
func New(text string) error {
	return errors.New(text)
}

// Join returns an error that wraps the given errors.
// Any nil error values are discarded.
// This is a convenience wrapper around errors.Join from the standard library.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// =============================================================================
// SENTINEL ERRORS (for use with Is)
// =============================================================================

// Sentinel errors that can be used with errors.Is comparisons
var (
	// ErrNoActiveScopeSentinel is a sentinel error for out-of-scope resolution
	ErrNoActiveScopeSentinel = &HostError{Code: CodeNoActiveScope}

	// ErrScopeAlreadyActiveSentinel is a sentinel error for overlapping scopes
	ErrScopeAlreadyActiveSentinel = &HostError{Code: CodeScopeAlreadyActive}

	// ErrDrainTimeoutSentinel is a sentinel error for drain timeouts
	ErrDrainTimeoutSentinel = &HostError{Code: CodeDrainTimeout}

	// ErrBuildFailedSentinel is a sentinel error for container build failures
	ErrBuildFailedSentinel = &HostError{Code: CodeBuildFailed}

	// ErrDisposeFailedSentinel is a sentinel error for container disposal failures
	ErrDisposeFailedSentinel = &HostError{Code: CodeDisposeFailed}
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNoActiveScope checks if the error is an out-of-scope resolution error
func IsNoActiveScope(err error) bool {
	return Is(err, ErrNoActiveScopeSentinel)
}

// IsScopeAlreadyActive checks if the error is an overlapping-scope error
func IsScopeAlreadyActive(err error) bool {
	return Is(err, ErrScopeAlreadyActiveSentinel)
}

// IsDrainTimeout checks if the error is a drain timeout error
func IsDrainTimeout(err error) bool {
	return Is(err, ErrDrainTimeoutSentinel)
}

// IsBuildFailed checks if the error is a container build failure
func IsBuildFailed(err error) bool {
	return Is(err, ErrBuildFailedSentinel)
}
