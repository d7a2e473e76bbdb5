package core

import "errors"

var (
	// ErrNotFound is returned for unknown post, schedule or template identifiers.
	ErrNotFound = errors.New("not found")
	// ErrValidation covers bad input: empty content, unknown enum tags,
	// missing template variables.
	ErrValidation = errors.New("validation failed")
	// ErrPublish marks a publish attempt that did not succeed.
	ErrPublish = errors.New("publish failed")
	// ErrTimeout is wrapped together with ErrPublish when the publisher did
	// not answer within the configured deadline.
	ErrTimeout = errors.New("timeout")
	// ErrPersistence wraps any storage read/write failure.
	ErrPersistence = errors.New("persistence error")
	// ErrConflict is returned when a record changed since it was read.
	ErrConflict = errors.New("concurrent modification")
)
