package notify

import (
	"errors"
	"fmt"
	"time"
)

// ProviderError is how a Provider reports whether a failed send may succeed on retry.
// Errors that are not a *ProviderError are treated as transient.
type ProviderError struct {
	Err        error
	Permanent  bool
	RetryAfter time.Duration // provider-requested wait before the next attempt
}

func (e *ProviderError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s provider error: %v", kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a provider rejection that retrying cannot fix.
func IsPermanent(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Permanent
}

func retryAfter(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

type DispatchErrorKind string

const (
	// Unreachable: transient failures exhausted the retry budget.
	Unreachable DispatchErrorKind = "unreachable"
	// Rejected: the provider refused the message permanently.
	Rejected DispatchErrorKind = "rejected"
)

type DispatchError struct {
	Kind     DispatchErrorKind
	Attempts int
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// KindOf returns the dispatch error kind in err's chain, or "".
func KindOf(err error) DispatchErrorKind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
