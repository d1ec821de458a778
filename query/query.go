package query

import (
	"context"
	"sync"

	"github.com/goliatone/go-freightsync/cache"
)

// Query is a caller's handle on one cache entry. It follows the entry until
// Close is called.
type Query struct {
	engine  *Engine
	desc    Descriptor
	key     string
	skipped bool
	sub     cache.SubscriptionID

	mu      sync.Mutex
	state   cache.Entry
	changed chan struct{}
	closed  bool
}

func newQuery(e *Engine, d Descriptor) *Query {
	return &Query{
		engine:  e,
		desc:    d,
		state:   cache.Entry{Status: cache.StatusIdle},
		changed: make(chan struct{}),
	}
}

// update is the store listener of the handle.
func (q *Query) update(entry cache.Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.state = entry
	close(q.changed)
	q.changed = make(chan struct{})
}

// Key returns the cache key, empty for skipped queries.
func (q *Query) Key() string {
	return q.key
}

// Descriptor returns the descriptor the query was run with.
func (q *Query) Descriptor() Descriptor {
	return q.desc
}

// Skipped reports whether the query was run with WithSkip(true).
func (q *Query) Skipped() bool {
	return q.skipped
}

// State returns the latest entry snapshot.
func (q *Query) State() cache.Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Changed returns a channel closed on the next state change.
func (q *Query) Changed() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.changed
}

// Wait blocks until the entry settles on success or error. Loading entries
// are waited out. Idle and stale entries with no fetch running, e.g. after the
// payload was dropped, are fetched again.
func (q *Query) Wait(ctx context.Context) (cache.Entry, error) {
	if q.skipped {
		return q.State(), ErrSkipped
	}

	for {
		q.mu.Lock()
		st, ch, closed := q.state, q.changed, q.closed
		q.mu.Unlock()

		if closed {
			return st, ErrClosed
		}

		switch st.Status {
		case cache.StatusSuccess:
			return st, nil
		case cache.StatusError:
			return st, st.Err
		case cache.StatusIdle, cache.StatusStale:
			q.engine.refetch(ctx, q.key, q.desc)
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Refetch dispatches a new fetch unless one is running. Skipped and closed
// queries ignore it.
func (q *Query) Refetch(ctx context.Context) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()

	if q.skipped || closed {
		return
	}
	q.engine.refetch(ctx, q.key, q.desc)
}

// Close unsubscribes the handle. It is safe to call more than once.
func (q *Query) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.changed)
	q.mu.Unlock()

	if !q.skipped {
		q.engine.store.Unsubscribe(q.key, q.sub)
	}
}
