package quadguard

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrPolicyDenied is returned when a policy evaluation results in a deny decision.
	ErrPolicyDenied = errors.New("policy denied")

	// ErrServerUnreachable is returned when the QuadGuard server cannot be contacted.
	ErrServerUnreachable = errors.New("server unreachable")
)

// QuadGuardError is the base error type for SDK errors.
type QuadGuardError struct {
	// Code is a machine-readable error code.
	Code string
	// Err is the underlying error.
	Err error
}

// Error returns the error message.
func (e *QuadGuardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quadguard [%s]: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("quadguard [%s]", e.Code)
}

// Unwrap returns the underlying error.
func (e *QuadGuardError) Unwrap() error {
	return e.Err
}

// PolicyDeniedError is returned when a policy evaluation results in a deny
// decision. It carries the violated rule names for caller diagnostics.
type PolicyDeniedError struct {
	// Violated lists the rule names that failed.
	Violated []string
	// Missing lists predicate names left unresolved by the valuation.
	Missing []string
}

// Error returns a human-readable description of the policy denial.
func (e *PolicyDeniedError) Error() string {
	if len(e.Violated) > 0 {
		return fmt.Sprintf("policy denied: violated %v", e.Violated)
	}
	return "policy denied"
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrPolicyDenied).
func (e *PolicyDeniedError) Is(target error) bool {
	return target == ErrPolicyDenied
}

// ServerUnreachableError is returned when the QuadGuard server cannot be
// contacted.
type ServerUnreachableError struct {
	// Cause is the underlying error that caused the server to be unreachable.
	Cause error
}

// Error returns a human-readable description of the server unreachable error.
func (e *ServerUnreachableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server unreachable: %v", e.Cause)
	}
	return "server unreachable"
}

// Unwrap returns the underlying error cause.
func (e *ServerUnreachableError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrServerUnreachable).
func (e *ServerUnreachableError) Is(target error) bool {
	return target == ErrServerUnreachable
}
