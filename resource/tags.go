package resource

import (
	"context"

	"github.com/goliatone/go-freightsync/cache"
)

type cacheTagsContextKey struct{}

// WithCacheTags attaches additional tags to the context. Reads issued with it
// register their results under these tags too.
func WithCacheTags(ctx context.Context, tags ...cache.Tag) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(tags) == 0 {
		return ctx
	}

	combined := cache.DedupeTags(append(cacheTagsFromContext(ctx), tags...))
	if len(combined) == 0 {
		return ctx
	}

	return context.WithValue(ctx, cacheTagsContextKey{}, combined)
}

func cacheTagsFromContext(ctx context.Context) []cache.Tag {
	if ctx == nil {
		return nil
	}
	if tags, ok := ctx.Value(cacheTagsContextKey{}).([]cache.Tag); ok {
		return append([]cache.Tag(nil), tags...)
	}
	return nil
}
