package query

import (
	"context"
	"sync"

	"github.com/goliatone/go-freightsync/cache"
)

// FilteredFunc builds the filtered descriptor of a list from its clean
// filters.
type FilteredFunc func(filters FilterState) Descriptor

// Selector runs the filtered or the unfiltered query of a list, never both.
// With active filters the filtered query is fetched and the unfiltered one is
// skipped; otherwise the other way round.
type Selector struct {
	engine   *Engine
	all      Descriptor
	filtered FilteredFunc

	mu        sync.Mutex
	filters   FilterState
	allQ      *Query
	filteredQ *Query
	closed    bool
}

// NewSelector starts a selector with empty filters, so the unfiltered query
// is the active one.
func NewSelector(ctx context.Context, engine *Engine, all Descriptor, filtered FilteredFunc) *Selector {
	s := &Selector{
		engine:   engine,
		all:      all,
		filtered: filtered,
		filters:  FilterState{},
	}
	s.allQ, s.filteredQ = s.run(ctx, s.filters)
	return s
}

func (s *Selector) run(ctx context.Context, filters FilterState) (all, filtered *Query) {
	active := filters.HasActive()
	filtered = s.engine.Run(ctx, s.filtered(filters.Clean()), WithSkip(!active))
	all = s.engine.Run(ctx, s.all, WithSkip(active))
	return all, filtered
}

// UpdateFilters merges partial into the filters and runs both queries again.
// The new handles are open before the old ones close, so an entry shared by
// both snapshots keeps its subscriber.
func (s *Selector) UpdateFilters(ctx context.Context, partial FilterState) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.filters = s.filters.Merge(partial)
	oldAll, oldFiltered := s.allQ, s.filteredQ
	s.allQ, s.filteredQ = s.run(ctx, s.filters)
	s.mu.Unlock()

	oldAll.Close()
	oldFiltered.Close()
}

// Filters returns a copy of the current filters.
func (s *Selector) Filters() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.Merge(nil)
}

// HasActiveFilters reports whether the filtered query is the active one.
func (s *Selector) HasActiveFilters() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.HasActive()
}

// Active returns the query that is not skipped.
func (s *Selector) Active() *Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filters.HasActive() {
		return s.filteredQ
	}
	return s.allQ
}

// State returns the entry of the active query.
func (s *Selector) State() cache.Entry {
	return s.Active().State()
}

// Close closes both handles.
func (s *Selector) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	all, filtered := s.allQ, s.filteredQ
	s.mu.Unlock()

	all.Close()
	filtered.Close()
}
