package domain

import (
	"errors"
	"fmt"
)

// ValidationError is bad caller input. Never retried, surfaced synchronously.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError is a missing application or document.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// TransientIOError wraps a store or provider failure worth retrying with
// backoff.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

// PermanentProviderError is a provider rejection of the input itself.
// Retrying cannot help; the document goes terminal and operators re-trigger
// manually after fixing the upload.
type PermanentProviderError struct {
	Reason string
}

func (e *PermanentProviderError) Error() string {
	return fmt.Sprintf("provider rejected document: %s", e.Reason)
}

// ConsistencyError is a detected invariant violation, e.g. an analysis row
// whose application no longer exists. Logged and surfaced, never a panic.
type ConsistencyError struct {
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation: %s", e.Detail)
}

// UnknownTargetError is a retention policy pointing at a table the sweeper
// does not manage. It fails that policy only.
type UnknownTargetError struct {
	Target string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("Unknown target: %s", e.Target)
}

// IsRetryable reports whether an extraction failure should be scheduled for
// another attempt rather than going terminal.
func IsRetryable(err error) bool {
	var perm *PermanentProviderError
	if errors.As(err, &perm) {
		return false
	}

	var val *ValidationError
	if errors.As(err, &val) {
		return false
	}

	return true
}
