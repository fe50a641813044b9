package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChoice marks a vote token outside the two canonical values.
	// Rejected at the producer, never enqueued.
	ErrInvalidChoice = errors.New("invalid vote choice")

	// ErrQueueUnavailable marks an enqueue that failed because the queue
	// could not be reached. Surfaced to the caller; no retry at this layer.
	ErrQueueUnavailable = errors.New("vote queue unavailable")
)

// MalformedEventError marks a queue payload that cannot be decoded into a
// VoteEvent. It can never become well-formed, so it is logged and discarded
// rather than retried.
type MalformedEventError struct {
	Payload []byte
	Cause   error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed vote event %q: %v", e.Payload, e.Cause)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Cause
}

// IsMalformed reports whether err is a MalformedEventError.
func IsMalformed(err error) bool {
	var malformed *MalformedEventError
	return errors.As(err, &malformed)
}
