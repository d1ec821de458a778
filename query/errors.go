package query

import "errors"

var (
	// ErrSkipped is returned by Wait on a skipped query. It marks a deliberate
	// no-op, not a failure.
	ErrSkipped = errors.New("query skipped")
	// ErrClosed is returned by Wait once the handle was closed.
	ErrClosed = errors.New("query closed")
	// ErrNoFetch is stored on entries whose descriptor has no Fetch function.
	ErrNoFetch = errors.New("descriptor has no fetch function")
)
