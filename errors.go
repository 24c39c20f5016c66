package entitle

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// Caller errors
	ErrAuthentication  = errors.New("entitle: authentication failed")
	ErrInvalidInput    = errors.New("entitle: invalid input")
	ErrInvalidSettings = errors.New("entitle: invalid settings")
	ErrTextTooLong     = errors.New("entitle: text exceeds plan limit")
	ErrUnknownPlan     = errors.New("entitle: unknown plan")

	// Entitlement errors
	ErrQuotaExceeded   = errors.New("entitle: quota exceeded")
	ErrRateLimited     = errors.New("entitle: too many requests")
	ErrPlanRestricted  = errors.New("entitle: not available on current plan")
	ErrSubjectNotFound = errors.New("entitle: subject not found")

	// History errors
	ErrHistoryBufferFull = errors.New("entitle: history buffer full")

	// Upstream errors
	ErrUpstream = errors.New("entitle: upstream failure")

	// Store errors
	ErrPersistence     = errors.New("entitle: persistence failure")
	ErrStoreClosed     = errors.New("entitle: store is closed")
	ErrMigrationFailed = errors.New("entitle: migration failed")
)

// StoreError wraps a storage failure with the operation that hit it. It
// matches ErrPersistence with errors.Is.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("entitle: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports ErrPersistence as a match.
func (e *StoreError) Is(target error) bool { return target == ErrPersistence }

// storeErr wraps err in a StoreError unless it is nil or already one of the
// package sentinels a backend may return.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) || errors.Is(err, ErrSubjectNotFound) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// UpstreamError wraps a failure of the generation provider or another
// upstream dependency. It matches ErrUpstream with errors.Is.
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("entitle: upstream %s returned %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("entitle: upstream %s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports ErrUpstream as a match.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// ValidationError represents a validation failure with details. It matches
// its Kind sentinel with errors.Is.
type ValidationError struct {
	Kind    error
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return e.Kind }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSubjectNotFound)
}

// IsQuotaError returns true if the error denies an action because of the
// subject's quota, request spacing or plan.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrPlanRestricted)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
// Persistence failures are retryable unless the store has been closed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrHistoryBufferFull) ||
		(errors.Is(err, ErrPersistence) && !errors.Is(err, ErrStoreClosed))
}

// IsClientError returns true if the caller's request itself was at fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrTextTooLong) ||
		errors.Is(err, ErrUnknownPlan) ||
		IsQuotaError(err)
}
