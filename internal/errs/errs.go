// Package errs defines the domain error kinds shared across the orchestrator.
//
// Errors are plain sentinel values wrapped with context via fmt.Errorf's
// %w verb, matched with errors.Is/As the way the rest of the module does
// it -- no third-party error-wrapping library is used here because the
// donor codebase never reaches for one either.
package errs

import "errors"

// Not found.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrBranchNotFound    = errors.New("branch not found")
	ErrWorktreeNotFound  = errors.New("worktree not found")
	ErrContainerNotFound = errors.New("container not found")
	ErrImageNotFound     = errors.New("image not found")
	ErrProfileNotFound   = errors.New("profile not found")
)

// Conflict.
var (
	ErrWorktreeAlreadyExists  = errors.New("worktree already exists")
	ErrContainerAlreadyExists = errors.New("container already exists")
	ErrSessionAlreadyExists   = errors.New("multiplexer session already exists")
)

// Not available.
var (
	ErrDaemonNotRunning  = errors.New("container daemon not running")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrToolBinaryMissing = errors.New("tool binary missing")
)

// External failure / validation / trust.
var (
	ErrCreateFailed  = errors.New("create failed")
	ErrStartFailed   = errors.New("start failed")
	ErrStopFailed    = errors.New("stop failed")
	ErrRemoveFailed  = errors.New("remove failed")
	ErrValidation    = errors.New("validation failed")
	ErrHooksUntrusted = errors.New("repo hooks untrusted")
)

// AggregateError collects multiple non-fatal failures from a multi-step
// operation (e.g. the deletion pipeline) so that later, still-desirable
// cleanup steps still run even after an earlier one fails.
type AggregateError struct {
	Errs []error
}

func (a *AggregateError) Add(err error) {
	if err != nil {
		a.Errs = append(a.Errs, err)
	}
}

func (a *AggregateError) ErrOrNil() error {
	if len(a.Errs) == 0 {
		return nil
	}
	return a
}

func (a *AggregateError) Error() string {
	if len(a.Errs) == 1 {
		return a.Errs[0].Error()
	}
	msg := "multiple errors:"
	for _, e := range a.Errs {
		msg += " [" + e.Error() + "]"
	}
	return msg
}

func (a *AggregateError) Unwrap() []error {
	return a.Errs
}
