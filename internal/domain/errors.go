package domain

import (
	"errors"
	"fmt"
)

// Caller-input errors: reported verbatim to the user, never retried.
var (
	// ErrNothingToRemember indicates a message with neither own content nor a
	// resolvable reply target.
	ErrNothingToRemember = errors.New("nothing to remember")

	// ErrEmptyQuery indicates a search phrase that is empty after trimming.
	ErrEmptyQuery = errors.New("empty search query")

	// ErrInvalidItemID indicates an item id that does not parse as a UUID.
	ErrInvalidItemID = errors.New("invalid item id")

	// ErrEmptyPayload indicates an attachment that resolved to zero bytes.
	ErrEmptyPayload = errors.New("empty attachment payload")
)

// Transient infrastructure errors: reported as "try again later", logged,
// never silently swallowed. A timeout is treated identically to a
// connectivity failure.
var (
	ErrStorageUnavailable   = errors.New("object storage unavailable")
	ErrStorageQuotaExceeded = errors.New("object storage quota exceeded")
	ErrMemoryUnavailable    = errors.New("memory service unavailable")
)

// RejectedError means the memory service received the request but validated
// it as malformed. Structurally wrong requests will not succeed on retry, so
// the caller surfaces the remote detail and stops.
type RejectedError struct {
	StatusCode int
	Detail     string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("memory service rejected request (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("memory service rejected request: %s", e.Detail)
}
