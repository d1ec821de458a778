package query

import (
	"context"
	"fmt"

	"github.com/goliatone/go-freightsync/cache"
)

// ExecFunc performs the write behind a mutation.
type ExecFunc func(ctx context.Context) (any, error)

// MutationDescriptor describes a write and the tags it invalidates once the
// backend acknowledged it.
type MutationDescriptor struct {
	Resource    string
	Operation   string
	Params      any
	Invalidates []cache.Tag
	Exec        ExecFunc
}

// Mutate runs m. On success the tags of m are invalidated before Mutate
// returns, so every affected subscriber has seen its entry go stale by the
// time the caller sees the result. A failed mutation leaves the cache as it
// was.
func (e *Engine) Mutate(ctx context.Context, m MutationDescriptor) (any, error) {
	if m.Exec == nil {
		return nil, fmt.Errorf("mutation %s%s%s: %w", m.Resource, cache.KeySeparator, m.Operation, ErrNoFetch)
	}

	data, err := m.Exec(ctx)
	e.metrics.Mutation(m.Resource, err)
	if err != nil {
		e.logger.Warn("mutation failed",
			"resource", m.Resource,
			"operation", m.Operation,
			"err", err,
		)
		return nil, fmt.Errorf("mutation %s%s%s: %w", m.Resource, cache.KeySeparator, m.Operation, err)
	}

	refetched := e.Invalidate(ctx, m.Invalidates...)
	e.logger.Info("mutation applied",
		"resource", m.Resource,
		"operation", m.Operation,
		"tags", m.Invalidates,
		"refetch", len(refetched),
	)
	return data, nil
}
