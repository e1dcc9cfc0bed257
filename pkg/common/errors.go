package common

import "errors"

// Error taxonomy for board operations. Anything caused by noisy external
// input is recovered locally (skip and count); ErrStorageUnavailable is the
// only error that ends a session.
var (
	// ErrInvalidEntity marks an empty or whitespace-only entity label.
	ErrInvalidEntity = errors.New("invalid entity label")

	// ErrSelfLoop marks a relationship whose endpoints normalize to the
	// same entity.
	ErrSelfLoop = errors.New("self-loop relationship rejected")

	// ErrMalformedExtraction marks an extraction tuple missing a required
	// field.
	ErrMalformedExtraction = errors.New("malformed extraction tuple")

	// ErrStorageUnavailable marks a durable backend that could not be
	// reached. Fatal to the round when durability was required.
	ErrStorageUnavailable = errors.New("graph storage unavailable")
)
