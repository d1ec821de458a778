package cache

import (
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/goliatone/go-freightsync/internal/metrics"
)

// SubscriptionID identifies one subscriber of a cache key.
type SubscriptionID string

// Listener receives the entry snapshot after every Put or invalidation of
// the key it subscribed to. Listeners run outside the store locks.
type Listener func(Entry)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for TTL countdowns.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithPayloadStore replaces the sturdyc payload backend.
func WithPayloadStore(p PayloadStore) Option {
	return func(s *Store) {
		if p != nil {
			s.payloads = p
		}
	}
}

// Store is the single source of truth for query results: one entry per cache
// key, its subscribers, its TTL countdown and the tag index. Entries are only
// changed through Store methods.
type Store struct {
	shards   []*shard
	payloads PayloadStore
	index    *TagIndex
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Recorder

	hooksMu sync.RWMutex
	onEvict []func(key string)
}

type shard struct {
	mu      sync.Mutex
	records map[string]*record
}

type record struct {
	entry     Entry
	listeners []subscriber
	timer     *clock.Timer
	timerGen  uint64
}

type subscriber struct {
	id SubscriptionID
	fn Listener
}

// NewStore validates cfg and builds an empty store.
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		index:  NewTagIndex(),
		clock:  clock.New(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.payloads == nil {
		payloads, err := NewPayloadStore(cfg)
		if err != nil {
			return nil, err
		}
		s.payloads = payloads
	}

	s.shards = make([]*shard, cfg.NumShards)
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]*record)}
	}

	return s, nil
}

// Index exposes the tag index.
func (s *Store) Index() *TagIndex {
	return s.index
}

// OnEvict registers fn to run after a key leaves the store.
func (s *Store) OnEvict(fn func(key string)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onEvict = append(s.onEvict, fn)
}

// Get returns a snapshot of the entry under key. It never fetches.
func (s *Store) Get(key string) (Entry, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok {
		return Entry{}, false
	}
	return s.snapshot(rec), true
}

// Put upserts the entry under key and notifies the key's subscribers. A
// success entry stores its Data as the payload and restarts any pending TTL
// countdown. Other statuses keep the previous payload for display, unless
// HasData is set, in which case Data replaces it.
func (s *Store) Put(key string, entry Entry) {
	sh := s.shardFor(key)
	sh.mu.Lock()

	rec, ok := sh.records[key]
	if !ok {
		rec = &record{}
		sh.records[key] = rec
	}

	data, replace := entry.Data, entry.HasData || entry.Status == StatusSuccess
	entry.Key = key
	entry.Data = nil
	entry.HasData = false
	entry.SubscriberCount = 0
	entry.Tags = DedupeTags(entry.Tags)
	rec.entry = entry

	if replace {
		s.payloads.Set(key, data)
	}
	if entry.Status == StatusSuccess {
		if len(rec.listeners) == 0 {
			s.armTTL(key, rec)
		} else {
			s.stopTTL(rec)
		}
	} else if len(rec.listeners) == 0 && rec.timer == nil {
		s.armTTL(key, rec)
	}

	snap := s.snapshot(rec)
	listeners := append([]subscriber(nil), rec.listeners...)
	sh.mu.Unlock()

	notify(listeners, snap)
}

// RegisterTags records that key depends on tags.
func (s *Store) RegisterTags(key string, tags ...Tag) {
	s.index.Register(key, tags...)
}

// Subscribe adds a subscriber to key, creating an idle entry when none
// exists, and cancels a pending TTL countdown.
func (s *Store) Subscribe(key string, fn Listener) SubscriptionID {
	id := SubscriptionID(uuid.NewString())

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok {
		rec = &record{entry: Entry{Key: key, Status: StatusIdle}}
		sh.records[key] = rec
	}
	rec.listeners = append(rec.listeners, subscriber{id: id, fn: fn})
	s.stopTTL(rec)

	return id
}

// Unsubscribe removes a subscriber. Reaching zero subscribers starts the TTL
// countdown of entries that have one.
func (s *Store) Unsubscribe(key string, id SubscriptionID) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok {
		return false
	}

	for i, sub := range rec.listeners {
		if sub.id != id {
			continue
		}
		rec.listeners = append(rec.listeners[:i], rec.listeners[i+1:]...)
		if len(rec.listeners) == 0 {
			s.armTTL(key, rec)
		}
		return true
	}
	return false
}

// Subscribers returns the subscriber count of key.
func (s *Store) Subscribers(key string) int {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if rec, ok := sh.records[key]; ok {
		return len(rec.listeners)
	}
	return 0
}

// Evict removes key, its payload and its tag registrations.
func (s *Store) Evict(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	rec, ok := sh.records[key]
	if ok {
		s.stopTTL(rec)
		delete(sh.records, key)
		s.payloads.Delete(key)
	}
	sh.mu.Unlock()

	if ok {
		s.afterEvict(key, metrics.EvictExplicit)
	}
	return ok
}

// Invalidate marks every key registered under any of tags as stale and
// returns the keys that have subscribers and must be refetched. Settled keys
// without subscribers are evicted. Loading keys are flagged so their
// in-flight result lands stale. Subscribers are notified before Invalidate
// returns.
func (s *Store) Invalidate(tags ...Tag) []string {
	keys := s.index.Keys(tags...)

	type notification struct {
		listeners []subscriber
		entry     Entry
	}

	var (
		refetch       []string
		evicted       []string
		orphans       []string
		notifications []notification
	)

	for _, key := range keys {
		sh := s.shardFor(key)
		sh.mu.Lock()

		rec, ok := sh.records[key]
		switch {
		case !ok:
			orphans = append(orphans, key)

		case rec.entry.Status == StatusLoading:
			rec.entry.Invalidated = true

		case len(rec.listeners) == 0:
			s.stopTTL(rec)
			delete(sh.records, key)
			s.payloads.Delete(key)
			evicted = append(evicted, key)

		default:
			rec.entry.Status = StatusStale
			refetch = append(refetch, key)
			notifications = append(notifications, notification{
				listeners: append([]subscriber(nil), rec.listeners...),
				entry:     s.snapshot(rec),
			})
		}

		sh.mu.Unlock()
	}

	for _, key := range orphans {
		s.index.Forget(key)
	}
	for _, key := range evicted {
		s.afterEvict(key, metrics.EvictInvalidate)
	}

	s.metrics.Invalidated(len(keys))
	if len(keys) > 0 {
		resources, instances := splitTags(tags)
		s.logger.Info("cache tags invalidated",
			"tags", tags,
			"resources", resources,
			"instances", instances,
			"keys", len(keys),
			"refetch", len(refetch),
			"evicted", len(evicted),
		)
	}

	for _, n := range notifications {
		notify(n.listeners, n.entry)
	}

	return refetch
}

// splitTags returns the sorted resource types tags touch and how many of
// them are instance tags.
func splitTags(tags []Tag) ([]string, int) {
	seen := make(map[string]struct{}, len(tags))
	var (
		resources []string
		instances int
	)
	for _, tag := range tags {
		resource, id := tag.Split()
		if id != "" {
			instances++
		}
		if _, ok := seen[resource]; ok {
			continue
		}
		seen[resource] = struct{}{}
		resources = append(resources, resource)
	}
	sort.Strings(resources)
	return resources, instances
}

// Keys returns the sorted keys currently held.
func (s *Store) Keys() []string {
	var keys []string
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key := range sh.records {
			keys = append(keys, key)
		}
		sh.mu.Unlock()
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries held.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// snapshot must be called with the shard lock held.
func (s *Store) snapshot(rec *record) Entry {
	e := rec.entry
	e.Tags = append([]Tag(nil), rec.entry.Tags...)
	e.SubscriberCount = len(rec.listeners)

	if data, ok := s.payloads.Get(e.Key); ok {
		e.Data = data
		e.HasData = true
	} else if e.Status == StatusSuccess {
		// payload dropped by the backend under capacity pressure
		e.Status = StatusIdle
	}
	return e
}

// armTTL must be called with the shard lock held.
func (s *Store) armTTL(key string, rec *record) {
	if rec.entry.TTL <= 0 {
		return
	}
	s.stopTTL(rec)
	gen := rec.timerGen
	rec.timer = s.clock.AfterFunc(rec.entry.TTL, func() {
		s.expire(key, gen)
	})
}

// stopTTL must be called with the shard lock held.
func (s *Store) stopTTL(rec *record) {
	if rec.timer != nil {
		rec.timer.Stop()
		rec.timer = nil
	}
	rec.timerGen++
}

func (s *Store) expire(key string, gen uint64) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	rec, ok := sh.records[key]
	if !ok || rec.timerGen != gen || len(rec.listeners) > 0 {
		sh.mu.Unlock()
		return
	}
	rec.timer = nil
	delete(sh.records, key)
	s.payloads.Delete(key)
	sh.mu.Unlock()

	s.afterEvict(key, metrics.EvictTTL)
}

func (s *Store) afterEvict(key, reason string) {
	s.index.Forget(key)
	s.metrics.Eviction(reason)
	s.logger.Debug("cache entry evicted", "key", key, "reason", reason)

	s.hooksMu.RLock()
	hooks := append([]func(string){}, s.onEvict...)
	s.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(key)
	}
}

func notify(listeners []subscriber, entry Entry) {
	for _, sub := range listeners {
		sub.fn(entry)
	}
}
