package resource

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"sort"

	"github.com/goliatone/go-freightsync/cache"
	"github.com/goliatone/go-freightsync/query"
	"github.com/goliatone/go-freightsync/transport"
)

// Identifier is implemented by documents that carry an id.
type Identifier interface {
	GetID() string
}

// Client reads and writes one resource through the query engine. Reads are
// cached and deduplicated by the engine; writes invalidate the resource's
// mutation tags once the backend acknowledged them.
type Client[T any] struct {
	def    Definition
	engine *query.Engine
	http   *transport.Client
}

// NewClient returns a client for def.
func NewClient[T any](def Definition, engine *query.Engine, http *transport.Client) *Client[T] {
	return &Client[T]{
		def:    def,
		engine: engine,
		http:   http,
	}
}

// Definition returns the resource the client serves.
func (c *Client[T]) Definition() Definition {
	return c.def
}

// ListQuery describes the list of every instance.
func (c *Client[T]) ListQuery(ctx context.Context) query.Descriptor {
	return c.listDescriptor(ctx, OpList, nil, []cache.Tag{c.def.Tag()}, func(ctx context.Context) (any, error) {
		var out []T
		if err := c.http.Get(ctx, c.def.Path, nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// MineQuery describes the list of the current user's own instances.
func (c *Client[T]) MineQuery(ctx context.Context) query.Descriptor {
	return c.listDescriptor(ctx, OpMine, nil, c.def.ListTags(), func(ctx context.Context) (any, error) {
		var out []T
		if err := c.http.Get(ctx, c.def.Path+"/my", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// FilterQuery describes the server side filtered list. Only the clean
// filters take part in the request and in the cache key.
func (c *Client[T]) FilterQuery(ctx context.Context, filters query.FilterState) query.Descriptor {
	clean := filters.Clean()
	params := map[string]any(clean)
	return c.listDescriptor(ctx, OpFilter, params, []cache.Tag{c.def.Tag()}, func(ctx context.Context) (any, error) {
		var out []T
		if err := c.http.Get(ctx, c.def.Path+"/filter", EncodeFilters(clean), &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// SearchQuery describes a text search, served by the resource's base path
// with a "q" parameter.
func (c *Client[T]) SearchQuery(ctx context.Context, text string) query.Descriptor {
	return c.listDescriptor(ctx, OpSearch, map[string]any{"q": text}, []cache.Tag{c.def.Tag()}, func(ctx context.Context) (any, error) {
		var out []T
		if err := c.http.Get(ctx, c.def.Path, url.Values{"q": {text}}, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// GetQuery describes one instance.
func (c *Client[T]) GetQuery(ctx context.Context, id string) query.Descriptor {
	return query.Descriptor{
		Resource:  c.def.Name,
		Operation: OpGet,
		Params:    map[string]any{"id": id},
		Tags:      withContextTags(ctx, c.def.Tag(), c.def.InstanceTag(id)),
		TTL:       c.def.TTL,
		Fetch: func(ctx context.Context) (any, error) {
			var out T
			if err := c.http.Get(ctx, c.def.ItemPath(id), nil, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

// MeQuery describes the current user's instance, e.g. GET /profiles/me.
func (c *Client[T]) MeQuery(ctx context.Context) query.Descriptor {
	return query.Descriptor{
		Resource:   c.def.Name,
		Operation:  OpMe,
		Tags:       withContextTags(ctx, c.def.Tag()),
		ResultTags: c.itemTags,
		TTL:        c.def.TTL,
		Fetch: func(ctx context.Context) (any, error) {
			var out T
			if err := c.http.Get(ctx, c.def.Path+"/me", nil, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

func (c *Client[T]) listDescriptor(ctx context.Context, op string, params any, tags []cache.Tag, fetch query.FetchFunc) query.Descriptor {
	return query.Descriptor{
		Resource:   c.def.Name,
		Operation:  op,
		Params:     params,
		Tags:       withContextTags(ctx, tags...),
		ResultTags: c.listTags,
		TTL:        c.def.TTL,
		Fetch:      fetch,
	}
}

// listTags tags a list result with the instance tag of every item.
func (c *Client[T]) listTags(data any) []cache.Tag {
	items, ok := data.([]T)
	if !ok {
		return nil
	}
	tags := make([]cache.Tag, 0, len(items))
	for _, item := range items {
		if id := idOf(item); id != "" {
			tags = append(tags, c.def.InstanceTag(id))
		}
	}
	return tags
}

func (c *Client[T]) itemTags(data any) []cache.Tag {
	item, ok := data.(T)
	if !ok {
		return nil
	}
	if id := idOf(item); id != "" {
		return []cache.Tag{c.def.InstanceTag(id)}
	}
	return nil
}

// List fetches the list of every instance, from the cache when fresh.
func (c *Client[T]) List(ctx context.Context) ([]T, error) {
	return read[[]T](ctx, c.engine, c.ListQuery(ctx))
}

// Mine fetches the current user's own instances.
func (c *Client[T]) Mine(ctx context.Context) ([]T, error) {
	return read[[]T](ctx, c.engine, c.MineQuery(ctx))
}

// Filter fetches the filtered list. Without active filters it is the plain
// list.
func (c *Client[T]) Filter(ctx context.Context, filters query.FilterState) ([]T, error) {
	if !filters.HasActive() {
		return c.List(ctx)
	}
	return read[[]T](ctx, c.engine, c.FilterQuery(ctx, filters))
}

// Search runs a text search.
func (c *Client[T]) Search(ctx context.Context, text string) ([]T, error) {
	return read[[]T](ctx, c.engine, c.SearchQuery(ctx, text))
}

// Get fetches one instance.
func (c *Client[T]) Get(ctx context.Context, id string) (T, error) {
	return read[T](ctx, c.engine, c.GetQuery(ctx, id))
}

// Me fetches the current user's instance.
func (c *Client[T]) Me(ctx context.Context) (T, error) {
	return read[T](ctx, c.engine, c.MeQuery(ctx))
}

// Selector starts a list selector switching between the plain and the
// filtered list.
func (c *Client[T]) Selector(ctx context.Context) *query.Selector {
	return query.NewSelector(ctx, c.engine, c.ListQuery(ctx), func(filters query.FilterState) query.Descriptor {
		return c.FilterQuery(ctx, filters)
	})
}

// Create posts doc and returns the stored instance.
func (c *Client[T]) Create(ctx context.Context, doc T) (T, error) {
	return mutate[T](ctx, c.engine, query.MutationDescriptor{
		Resource:    c.def.Name,
		Operation:   OpCreate,
		Params:      doc,
		Invalidates: c.def.MutationTags(OpCreate, ""),
		Exec: func(ctx context.Context) (any, error) {
			var out T
			if err := c.http.Post(ctx, c.def.Path, doc, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	})
}

// Update replaces the instance id with doc.
func (c *Client[T]) Update(ctx context.Context, id string, doc T) (T, error) {
	return mutate[T](ctx, c.engine, query.MutationDescriptor{
		Resource:    c.def.Name,
		Operation:   OpUpdate,
		Params:      map[string]any{"id": id},
		Invalidates: c.def.MutationTags(OpUpdate, id),
		Exec: func(ctx context.Context) (any, error) {
			var out T
			if err := c.http.Put(ctx, c.def.ItemPath(id), doc, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	})
}

// PatchStatus changes the status of the instance id.
func (c *Client[T]) PatchStatus(ctx context.Context, id, status string) (T, error) {
	return mutate[T](ctx, c.engine, query.MutationDescriptor{
		Resource:    c.def.Name,
		Operation:   OpStatus,
		Params:      map[string]any{"id": id, "status": status},
		Invalidates: c.def.MutationTags(OpStatus, id),
		Exec: func(ctx context.Context) (any, error) {
			var out T
			if err := c.http.Patch(ctx, c.def.ItemPath(id)+"/status", map[string]string{"status": status}, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	})
}

// Delete removes the instance id.
func (c *Client[T]) Delete(ctx context.Context, id string) error {
	_, err := c.engine.Mutate(ctx, query.MutationDescriptor{
		Resource:    c.def.Name,
		Operation:   OpDelete,
		Params:      map[string]any{"id": id},
		Invalidates: c.def.MutationTags(OpDelete, id),
		Exec: func(ctx context.Context) (any, error) {
			return nil, c.http.Delete(ctx, c.def.ItemPath(id), nil)
		},
	})
	return err
}

// As returns the entry's data as V.
func As[V any](entry cache.Entry) (V, bool) {
	var zero V
	if !entry.HasData && entry.Data == nil {
		return zero, false
	}
	v, ok := entry.Data.(V)
	return v, ok
}

func read[V any](ctx context.Context, engine *query.Engine, d query.Descriptor) (V, error) {
	var zero V

	q := engine.Run(ctx, d)
	defer q.Close()

	entry, err := q.Wait(ctx)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", d, err)
	}
	v, ok := As[V](entry)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected data %T", d, entry.Data)
	}
	return v, nil
}

func mutate[V any](ctx context.Context, engine *query.Engine, m query.MutationDescriptor) (V, error) {
	var zero V
	data, err := engine.Mutate(ctx, m)
	if err != nil {
		return zero, err
	}
	v, ok := data.(V)
	if !ok {
		return zero, fmt.Errorf("mutation %s%s%s: unexpected data %T", m.Resource, cache.KeySeparator, m.Operation, data)
	}
	return v, nil
}

func idOf(item any) string {
	if ider, ok := item.(Identifier); ok {
		return ider.GetID()
	}
	if m, ok := item.(map[string]any); ok {
		return query.ParamID(m)
	}
	return ""
}

func withContextTags(ctx context.Context, tags ...cache.Tag) []cache.Tag {
	return cache.DedupeTags(append(tags, cacheTagsFromContext(ctx)...))
}

// EncodeFilters turns clean filters into query parameters. Slices and arrays
// become repeated parameters.
func EncodeFilters(filters query.FilterState) url.Values {
	values := url.Values{}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := reflect.ValueOf(filters[k])
		switch v.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < v.Len(); i++ {
				values.Add(k, fmt.Sprint(v.Index(i).Interface()))
			}
		default:
			values.Add(k, fmt.Sprint(filters[k]))
		}
	}
	return values
}
