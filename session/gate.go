package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/goliatone/go-freightsync/cache"
	"github.com/goliatone/go-freightsync/internal/metrics"
	"github.com/goliatone/go-freightsync/query"
)

// DefaultResolveTimeout bounds how long the gate stays in StateResolving.
const DefaultResolveTimeout = 3000 * time.Millisecond

// ErrTimeoutExpired is the cause recorded when the resolve window elapsed
// without a profile. It resolves the gate to StateResolvedAbsent and is not
// an error for the user.
var ErrTimeoutExpired = errors.New("session resolve timeout expired")

// State of the session resolution gate.
type State string

const (
	StateNoToken         State = "no_token"
	StateResolving       State = "resolving"
	StateResolvedPresent State = "resolved_present"
	StateResolvedAbsent  State = "resolved_absent"
)

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the clock driving the resolve timer.
func WithClock(c clock.Clock) Option {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithResolveTimeout overrides DefaultResolveTimeout.
func WithResolveTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithEagerResolve lets a successful profile fetch resolve the gate right
// away instead of at the end of the resolve window. The window still bounds
// the wait when the fetch is slow or fails.
func WithEagerResolve(eager bool) Option {
	return func(g *Gate) {
		g.eager = eager
	}
}

// WithLogger sets the gate logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// Gate decides, within a bounded window, whether the session has a profile.
// It follows the AuthStore: every change of the token or of the held profile
// re-arms it, cancelling the timer and the profile query of the previous
// round first.
type Gate struct {
	engine  *query.Engine
	auth    AuthStore
	profile query.Descriptor
	clock   clock.Clock
	timeout time.Duration
	eager   bool
	logger  *slog.Logger
	metrics *metrics.Recorder

	mu      sync.Mutex
	state   State
	cause   error
	gen     uint64
	timer   *clock.Timer
	cancel  context.CancelFunc
	query   *query.Query
	changed chan struct{}
	closed  bool

	// last seen AuthStore values
	rev        uint64
	token      string
	held       bool
	profileDoc any

	// delivery of state changes, see flush
	listeners []listener
	nextID    uint64
	dirty     bool
	emitting  bool
	emitted   State

	unsubscribe func()
}

type listener struct {
	id uint64
	fn func(State)
}

// NewGate starts a gate over auth. profile is the descriptor of the current
// user's profile query.
func NewGate(engine *query.Engine, auth AuthStore, profile query.Descriptor, opts ...Option) *Gate {
	g := &Gate{
		engine:    engine,
		auth:      auth,
		profile:   profile,
		clock:     clock.New(),
		timeout:   DefaultResolveTimeout,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		changed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.mu.Lock()
	g.unsubscribe = auth.Subscribe(g.sync)
	g.rev = auth.Revision()
	g.token = auth.Token()
	g.profileDoc, g.held = auth.Profile()
	g.arm()
	g.dirty = true
	g.mu.Unlock()

	g.flush()
	return g
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Cause returns ErrTimeoutExpired after the gate resolved absent, nil
// otherwise.
func (g *Gate) Cause() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cause
}

// Decision returns the guard decision for the current state.
func (g *Gate) Decision() Decision {
	return Guard(g.State())
}

// OnChange registers fn to run after every state change and returns a
// function that removes it. Listeners run in registration order, one change
// at a time, and the last state they receive is the gate's current state.
// Changes made while listeners run are delivered after them.
func (g *Gate) OnChange(fn func(State)) func() {
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.listeners = append(g.listeners, listener{id: id, fn: fn})
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.listeners = slices.DeleteFunc(g.listeners, func(l listener) bool { return l.id == id })
	}
}

// Settled blocks until the gate leaves StateResolving.
func (g *Gate) Settled(ctx context.Context) (State, error) {
	for {
		g.mu.Lock()
		state, ch := g.state, g.changed
		g.mu.Unlock()

		if state != StateResolving {
			return state, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Close stops following the AuthStore and cancels any pending resolution.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.gen++
	g.stop()
	unsubscribe := g.unsubscribe
	g.mu.Unlock()

	unsubscribe()
}

// sync is the AuthStore listener.
func (g *Gate) sync() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}

	rev := g.auth.Revision()
	token := g.auth.Token()
	doc, held := g.auth.Profile()
	g.rev = rev
	if token == g.token && held == g.held && reflect.DeepEqual(doc, g.profileDoc) {
		g.mu.Unlock()
		return
	}

	switched := g.token != "" && token != g.token
	g.token, g.held, g.profileDoc = token, held, doc

	g.stop()
	if switched {
		// cached profiles belong to the previous session
		g.engine.Invalidate(context.Background(), cache.ResourceTag(g.profile.Resource))
	}
	g.arm()
	g.mu.Unlock()

	g.flush()
}

// arm must be called with g.mu held.
func (g *Gate) arm() {
	g.gen++
	g.stop()
	g.cause = nil

	switch {
	case g.token == "":
		g.set(StateNoToken)
		return
	case g.held:
		g.set(StateResolvedPresent)
		return
	}

	gen := g.gen
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.query = g.engine.Run(ctx, g.profile)
	g.timer = g.clock.AfterFunc(g.timeout, func() {
		g.expire(gen)
	})
	if g.eager {
		go g.await(ctx, gen, g.query)
	}

	g.logger.Debug("session resolve armed", "timeout", g.timeout, "eager", g.eager)
	g.set(StateResolving)
}

// stop must be called with g.mu held.
func (g *Gate) stop() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	if g.query != nil {
		g.query.Close()
		g.query = nil
	}
}

// set must be called with g.mu held.
func (g *Gate) set(state State) {
	if g.state == state {
		return
	}
	g.state = state
	g.dirty = true
	close(g.changed)
	g.changed = make(chan struct{})
}

func (g *Gate) expire(gen uint64) {
	g.mu.Lock()
	if g.closed || gen != g.gen || g.state != StateResolving {
		g.mu.Unlock()
		return
	}
	g.timer = nil
	apply := g.resolve(g.query.State())
	g.mu.Unlock()

	apply()
	g.flush()
}

func (g *Gate) await(ctx context.Context, gen uint64, q *query.Query) {
	entry, err := q.Wait(ctx)
	if err != nil {
		return
	}

	g.mu.Lock()
	if g.closed || gen != g.gen || g.state != StateResolving {
		g.mu.Unlock()
		return
	}
	apply := g.resolve(entry)
	g.mu.Unlock()

	apply()
	g.flush()
}

// resolve must be called with g.mu held. The returned function writes the
// outcome to the AuthStore and must run after g.mu is released. The write is
// conditional on the AuthStore revision the round observed, so it is dropped
// when the token or the profile changed in between.
func (g *Gate) resolve(entry cache.Entry) func() {
	g.stop()
	rev := g.rev

	if entry.Status == cache.StatusSuccess {
		profile := entry.Data
		g.held, g.profileDoc = true, profile
		g.set(StateResolvedPresent)
		return func() {
			if !g.auth.SetProfileIf(rev, profile) {
				g.logger.Debug("session profile write dropped", "revision", rev)
			}
		}
	}

	g.cause = ErrTimeoutExpired
	g.held, g.profileDoc = false, nil
	g.set(StateResolvedAbsent)
	return func() {
		if !g.auth.ClearProfileIf(rev) {
			g.logger.Debug("session profile clear dropped", "revision", rev)
		}
	}
}

// flush delivers pending state changes. Only one caller delivers at a time;
// the others, including listeners changing the AuthStore from inside a
// callback, leave their change to it. Each round re-reads the current state,
// so intermediate states superseded before delivery are skipped.
func (g *Gate) flush() {
	g.mu.Lock()
	if g.emitting {
		g.mu.Unlock()
		return
	}
	g.emitting = true

	for g.dirty {
		g.dirty = false
		state := g.state
		if state == g.emitted {
			continue
		}
		g.emitted = state
		listeners := slices.Clone(g.listeners)
		g.mu.Unlock()

		g.metrics.GateTransition(string(state))
		g.logger.Info("session gate transition", "state", string(state))
		for _, l := range listeners {
			l.fn(state)
		}

		g.mu.Lock()
	}

	g.emitting = false
	g.mu.Unlock()
}
