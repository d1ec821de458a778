package query

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-freightsync/cache"
	"github.com/goliatone/go-freightsync/internal/metrics"
)

// Option configures an Engine.
type Option func(*Engine)

// WithKeySerializer replaces the canonical JSON key serializer.
func WithKeySerializer(s cache.KeySerializer) Option {
	return func(e *Engine) {
		if s != nil {
			e.keys = s
		}
	}
}

// WithClock sets the clock used for fetch timestamps.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

type flight struct {
	ctx  context.Context
	tags []cache.Tag
	// refetch is set for flights started by invalidation. An invalidation
	// that lands while such a flight runs is served by it.
	refetch bool
	// invalidated is set when the tags of a flight whose key is not indexed
	// yet were invalidated.
	invalidated bool
}

// Engine runs descriptors against the cache store: one network call per key
// at a time, shared by every caller that asks for the key meanwhile.
type Engine struct {
	store   *cache.Store
	keys    cache.KeySerializer
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Recorder

	// mu serializes dispatch decisions and result publication.
	mu       sync.Mutex
	group    singleflight.Group
	inflight map[string]flight
	registry *xsync.MapOf[string, Descriptor]
}

// New creates an engine on top of store.
func New(store *cache.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		keys:     cache.NewDefaultKeySerializer(),
		clock:    clock.New(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		inflight: make(map[string]flight),
		registry: xsync.NewMapOf[string, Descriptor](),
	}
	for _, opt := range opts {
		opt(e)
	}

	store.OnEvict(func(key string) {
		e.registry.Delete(key)
	})

	return e
}

// Store returns the cache store the engine writes to.
func (e *Engine) Store() *cache.Store {
	return e.store
}

// Key returns the cache key of d.
func (e *Engine) Key(d Descriptor) string {
	return e.keys.SerializeKey(d.Resource, d.Operation, d.Params)
}

// RunOption configures a single Run.
type RunOption func(*runConfig)

type runConfig struct {
	skip bool
}

// WithSkip makes Run a no-op when skip is true.
func WithSkip(skip bool) RunOption {
	return func(c *runConfig) {
		c.skip = skip
	}
}

// Run subscribes to the cache entry of d and fetches it unless a fresh result
// or a running fetch exists. A skipped run never touches the store and
// reports idle. The returned handle must be closed.
func (e *Engine) Run(ctx context.Context, d Descriptor, opts ...RunOption) *Query {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	q := newQuery(e, d)
	if cfg.skip {
		q.skipped = true
		e.metrics.Lookup(d.Resource, metrics.OutcomeSkip)
		return q
	}
	q.key = e.Key(d)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.Store(q.key, d)
	q.sub = e.store.Subscribe(q.key, q.update)
	entry, _ := e.store.Get(q.key)
	q.update(entry)

	_, flying := e.inflight[q.key]
	switch {
	case entry.Fresh() && !flying:
		e.metrics.Lookup(d.Resource, metrics.OutcomeHit)
		e.logger.Debug("query cache hit", "key", q.key)
		return q
	case entry.Status == cache.StatusLoading || flying:
		e.metrics.Lookup(d.Resource, metrics.OutcomeAttach)
		e.logger.Debug("query attached to running fetch", "key", q.key)
	default:
		e.metrics.Lookup(d.Resource, metrics.OutcomeMiss)
	}

	e.dispatch(ctx, q.key, d, false)
	return q
}

// Invalidate marks every entry tagged with any of tags stale, evicts the
// unsubscribed ones and then refetches the subscribed ones. Subscribers have
// seen the stale state when Invalidate returns. It returns the refetched
// keys.
func (e *Engine) Invalidate(ctx context.Context, tags ...cache.Tag) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := e.store.Invalidate(tags...)
	for key, fl := range e.inflight {
		if !fl.refetch && overlaps(fl.tags, tags) {
			fl.invalidated = true
			e.inflight[key] = fl
		}
	}
	for _, key := range keys {
		d, ok := e.registry.Load(key)
		if !ok {
			e.logger.Debug("no descriptor for invalidated key", "key", key)
			continue
		}
		e.metrics.Refetch()
		e.dispatch(ctx, key, d, true)
	}
	return keys
}

func (e *Engine) refetch(ctx context.Context, key string, d Descriptor) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.Store(key, d)
	e.dispatch(ctx, key, d, false)
}

// dispatch must be called with e.mu held. The singleflight group decides
// whether a call starts or joins the running one; inflight only carries the
// flight's invalidation bookkeeping. settle runs inside the flight function,
// so a key is in inflight exactly while its group call is pending.
func (e *Engine) dispatch(ctx context.Context, key string, d Descriptor, refetch bool) {
	prev, _ := e.store.Get(key)

	fl, flying := e.inflight[key]
	if !flying {
		fl = flight{ctx: context.WithoutCancel(ctx), tags: d.baseTags(), refetch: refetch}
		e.inflight[key] = fl
		e.store.Put(key, cache.Entry{
			Status:             cache.StatusLoading,
			Tags:               prev.Tags,
			TTL:                d.TTL,
			LastFetchStartedAt: e.clock.Now(),
		})
		e.logger.Debug("query fetch dispatched",
			"key", key,
			"resource", d.Resource,
			"operation", d.Operation,
			"refetch", refetch,
		)
	} else if prev.Status != cache.StatusLoading {
		e.store.Put(key, cache.Entry{
			Status:             cache.StatusLoading,
			Tags:               prev.Tags,
			TTL:                d.TTL,
			LastFetchStartedAt: prev.LastFetchStartedAt,
		})
	}

	fctx := fl.ctx
	ch := e.group.DoChan(key, func() (any, error) {
		var data any
		err := ErrNoFetch
		if d.Fetch != nil {
			data, err = d.Fetch(fctx)
		}
		e.settle(key, d, data, err)
		return data, err
	})
	go func() {
		if res := <-ch; res.Shared {
			e.logger.Debug("query fetch shared", "key", key)
		}
	}()
}

func (e *Engine) settle(key string, d Descriptor, data any, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.group.Forget(key)
	fl, tracked := e.inflight[key]
	delete(e.inflight, key)
	if !tracked {
		fl.ctx = context.Background()
	}
	e.metrics.Fetch(d.Resource, err)

	entry, ok := e.store.Get(key)

	if err != nil {
		e.logger.Warn("query fetch failed",
			"key", key,
			"resource", d.Resource,
			"operation", d.Operation,
			"err", err,
		)
		if !ok {
			return
		}
		e.store.Put(key, cache.Entry{
			Status:             cache.StatusError,
			Err:                err,
			Tags:               entry.Tags,
			TTL:                d.TTL,
			LastFetchStartedAt: entry.LastFetchStartedAt,
		})
		return
	}

	tags := d.ProvidedTags(data)

	invalidated := (ok && entry.Invalidated) || fl.invalidated
	if invalidated && !fl.refetch {
		if !ok || entry.SubscriberCount == 0 {
			if ok {
				e.store.Evict(key)
			}
			return
		}
		e.store.Put(key, cache.Entry{
			Status:             cache.StatusStale,
			Data:               data,
			HasData:            true,
			Tags:               tags,
			TTL:                d.TTL,
			LastFetchStartedAt: entry.LastFetchStartedAt,
		})
		e.store.RegisterTags(key, tags...)
		e.metrics.Refetch()
		e.dispatch(fl.ctx, key, d, true)
		return
	}

	e.store.Put(key, cache.Entry{
		Status:             cache.StatusSuccess,
		Data:               data,
		Tags:               tags,
		TTL:                d.TTL,
		LastFetchStartedAt: entry.LastFetchStartedAt,
	})
	e.store.RegisterTags(key, tags...)
	e.logger.Debug("query fetch succeeded", "key", key, "tags", tags)
}

func overlaps(a, b []cache.Tag) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
