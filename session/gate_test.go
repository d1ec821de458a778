package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-freightsync/cache"
	"github.com/goliatone/go-freightsync/internal/metrics"
	"github.com/goliatone/go-freightsync/query"
)

const profileKey = "Profile::me"

// profileBackend serves the profile query once released.
type profileBackend struct {
	calls   atomic.Int32
	release chan struct{}
	once    sync.Once
	err     error
	doc     map[string]any
}

func newProfileBackend(t *testing.T) *profileBackend {
	b := &profileBackend{
		release: make(chan struct{}),
		doc:     map[string]any{"id": "p-1", "role": "carrier"},
	}
	t.Cleanup(b.open)
	return b
}

func (b *profileBackend) open() {
	b.once.Do(func() { close(b.release) })
}

func (b *profileBackend) fetch(ctx context.Context) (any, error) {
	b.calls.Add(1)
	<-b.release
	if b.err != nil {
		return nil, b.err
	}
	return b.doc, nil
}

func (b *profileBackend) descriptor() query.Descriptor {
	return query.Descriptor{Resource: "Profile", Operation: "me", Fetch: b.fetch}
}

// countingAuth records profile writes made by the gate. beforeWrite, when
// set, runs right before a write reaches the store.
type countingAuth struct {
	*MemoryAuthStore
	clears      atomic.Int32
	sets        atomic.Int32
	beforeWrite func()
}

func (a *countingAuth) SetProfileIf(rev uint64, p any) bool {
	a.sets.Add(1)
	if a.beforeWrite != nil {
		a.beforeWrite()
	}
	return a.MemoryAuthStore.SetProfileIf(rev, p)
}

func (a *countingAuth) ClearProfileIf(rev uint64) bool {
	a.clears.Add(1)
	if a.beforeWrite != nil {
		a.beforeWrite()
	}
	return a.MemoryAuthStore.ClearProfileIf(rev)
}

type gateFixture struct {
	mock    *clock.Mock
	store   *cache.Store
	engine  *query.Engine
	auth    *countingAuth
	backend *profileBackend
}

func newGateFixture(t *testing.T, token string) *gateFixture {
	t.Helper()
	store, err := cache.NewStore(cache.Config{Capacity: 10, NumShards: 2, EvictionPercentage: 10})
	require.NoError(t, err)
	return &gateFixture{
		mock:    clock.NewMock(),
		store:   store,
		engine:  query.New(store),
		auth:    &countingAuth{MemoryAuthStore: NewMemoryAuthStore(token)},
		backend: newProfileBackend(t),
	}
}

func (f *gateFixture) gate(t *testing.T, opts ...Option) *Gate {
	t.Helper()
	g := NewGate(f.engine, f.auth, f.backend.descriptor(), append([]Option{WithClock(f.mock)}, opts...)...)
	t.Cleanup(g.Close)
	return g
}

func eventuallyState(t *testing.T, g *Gate, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return g.State() == want }, 2*time.Second, 5*time.Millisecond,
		"expected state %s, have %s", want, g.State())
}

func TestGate_NoToken(t *testing.T) {
	f := newGateFixture(t, "")
	g := f.gate(t)

	assert.Equal(t, StateNoToken, g.State())
	assert.Equal(t, Decision{Redirect: RedirectLogin}, g.Decision())
	assert.Equal(t, int32(0), f.backend.calls.Load(), "profile query is skipped without a token")
	assert.Equal(t, 0, f.store.Len())
}

func TestGate_HeldProfileResolvesImmediately(t *testing.T) {
	f := newGateFixture(t, "token")
	f.auth.MemoryAuthStore.SetProfile(map[string]any{"id": "p-9"})

	g := f.gate(t)

	assert.Equal(t, StateResolvedPresent, g.State())
	assert.True(t, g.Decision().Allow)
	assert.Equal(t, int32(0), f.backend.calls.Load())
}

func TestGate_TimeoutResolvesAbsentAtExactly3000ms(t *testing.T) {
	recorder := metrics.New(nil)
	f := newGateFixture(t, "token")
	g := f.gate(t, WithMetrics(recorder))

	require.Equal(t, StateResolving, g.State())
	assert.True(t, g.Decision().Wait)
	require.Eventually(t, func() bool { return f.backend.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.mock.Add(2999 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateResolving, g.State())

	f.mock.Add(time.Millisecond)
	eventuallyState(t, g, StateResolvedAbsent)

	assert.ErrorIs(t, g.Cause(), ErrTimeoutExpired)
	assert.Equal(t, Decision{Redirect: RedirectProfileCreation}, g.Decision())
	require.Eventually(t, func() bool { return f.auth.clears.Load() == 1 }, time.Second, 5*time.Millisecond)
	_, held := f.auth.Profile()
	assert.False(t, held)

	entry, ok := f.store.Get(profileKey)
	require.True(t, ok)
	assert.Equal(t, cache.StatusLoading, entry.Status, "the fetch may still be pending")
	assert.Equal(t, 0, entry.SubscriberCount, "the gate detached from the query")

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(recorder.Gate.WithLabelValues(string(StateResolvedAbsent))) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestGate_FetchAt500msResolvesPresentOnlyAt3000ms(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t)

	f.mock.Add(500 * time.Millisecond)
	f.backend.open()
	require.Eventually(t, func() bool {
		entry, ok := f.store.Get(profileKey)
		return ok && entry.Status == cache.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	f.mock.Add(2499 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateResolving, g.State(), "resolution is time-boxed")

	f.mock.Add(time.Millisecond)
	eventuallyState(t, g, StateResolvedPresent)

	require.Eventually(t, func() bool { return f.auth.sets.Load() == 1 }, time.Second, 5*time.Millisecond)
	profile, held := f.auth.Profile()
	require.True(t, held)
	assert.Equal(t, f.backend.doc, profile)
	assert.Equal(t, int32(1), f.auth.sets.Load())
	assert.NoError(t, g.Cause())
}

func TestGate_EagerResolveSkipsTheWait(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t, WithEagerResolve(true))

	f.backend.open()
	eventuallyState(t, g, StateResolvedPresent)

	// the timer of the finished round must not fire later
	f.mock.Add(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateResolvedPresent, g.State())
}

func TestGate_EagerResolveStillBoundedOnFailure(t *testing.T) {
	f := newGateFixture(t, "token")
	f.backend.err = errors.New("status 404")
	g := f.gate(t, WithEagerResolve(true))

	f.backend.open()
	require.Eventually(t, func() bool {
		entry, ok := f.store.Get(profileKey)
		return ok && entry.Status == cache.StatusError
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateResolving, g.State())

	f.mock.Add(DefaultResolveTimeout)
	eventuallyState(t, g, StateResolvedAbsent)
}

func TestGate_CustomResolveTimeout(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t, WithResolveTimeout(time.Second))

	f.mock.Add(time.Second)
	eventuallyState(t, g, StateResolvedAbsent)
}

func TestGate_TokenClearedCancelsResolution(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t)
	require.Equal(t, StateResolving, g.State())

	f.auth.SetToken("")
	assert.Equal(t, StateNoToken, g.State())
	assert.Equal(t, 0, f.store.Subscribers(profileKey))

	f.mock.Add(DefaultResolveTimeout)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateNoToken, g.State(), "the cancelled timer must not resolve")
	assert.Equal(t, int32(0), f.auth.clears.Load())
}

func TestGate_ExternalProfileCancelsTimer(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t)

	external := map[string]any{"id": "p-2"}
	f.auth.MemoryAuthStore.SetProfile(external)
	assert.Equal(t, StateResolvedPresent, g.State())

	f.mock.Add(DefaultResolveTimeout)
	time.Sleep(20 * time.Millisecond)

	profile, held := f.auth.Profile()
	assert.True(t, held, "a late timer must not clear the external profile")
	assert.Equal(t, external, profile)
	assert.Equal(t, int32(0), f.auth.clears.Load())
}

func TestGate_StatesAreNotSticky(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t)

	var mu sync.Mutex
	var seen []State
	g.OnChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	f.mock.Add(DefaultResolveTimeout)
	eventuallyState(t, g, StateResolvedAbsent)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)

	// a profile created elsewhere flips the gate
	f.auth.MemoryAuthStore.SetProfile(map[string]any{"id": "p-3"})
	assert.Equal(t, StateResolvedPresent, g.State())

	// logging out and in again re-arms from scratch
	f.auth.Logout()
	assert.Equal(t, StateNoToken, g.State())
	f.auth.SetToken("token-2")
	assert.Equal(t, StateResolving, g.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateResolvedAbsent, StateResolvedPresent, StateNoToken, StateResolving}, seen)
}

func TestGate_ClearingAbsentProfileDoesNotRearm(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t)

	var transitions atomic.Int32
	g.OnChange(func(State) { transitions.Add(1) })

	f.mock.Add(DefaultResolveTimeout)
	eventuallyState(t, g, StateResolvedAbsent)

	f.auth.ClearProfile()
	f.auth.ClearProfile()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, StateResolvedAbsent, g.State())
	assert.Equal(t, int32(1), transitions.Load())
	assert.Equal(t, int32(1), f.backend.calls.Load())
}

func TestGate_TokenSwitchDropsCachedProfile(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t)

	f.backend.open()
	require.Eventually(t, func() bool {
		entry, ok := f.store.Get(profileKey)
		return ok && entry.Status == cache.StatusSuccess
	}, time.Second, 5*time.Millisecond)
	f.mock.Add(DefaultResolveTimeout)
	eventuallyState(t, g, StateResolvedPresent)
	require.Eventually(t, func() bool { return f.auth.sets.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.auth.Logout()
	_, ok := f.store.Get(profileKey)
	assert.False(t, ok, "the previous session's profile is evicted")
}

func TestGate_SettledWaitsForResolution(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t)

	done := make(chan State, 1)
	go func() {
		state, _ := g.Settled(context.Background())
		done <- state
	}()

	select {
	case <-done:
		t.Fatal("Settled returned while resolving")
	case <-time.After(20 * time.Millisecond):
	}

	f.mock.Add(DefaultResolveTimeout)
	select {
	case state := <-done:
		assert.Equal(t, StateResolvedAbsent, state)
	case <-time.After(2 * time.Second):
		t.Fatal("Settled did not return")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state, err := g.Settled(ctx)
	assert.NoError(t, err)
	assert.Equal(t, StateResolvedAbsent, state)
}

func TestGate_CloseStopsFollowingAuth(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t)

	g.Close()
	assert.Equal(t, 0, f.store.Subscribers(profileKey))

	f.auth.SetToken("")
	f.mock.Add(DefaultResolveTimeout)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateResolving, g.State())
	assert.Equal(t, int32(0), f.auth.clears.Load())
}

func TestGate_TokenSwitchDuringWriteDropsStaleProfile(t *testing.T) {
	f := newGateFixture(t, "token-A")
	var switched sync.Once
	f.auth.beforeWrite = func() {
		switched.Do(func() { f.auth.SetToken("token-B") })
	}
	g := f.gate(t)

	f.backend.open()
	require.Eventually(t, func() bool {
		entry, ok := f.store.Get(profileKey)
		return ok && entry.Status == cache.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	f.mock.Add(DefaultResolveTimeout)
	require.Eventually(t, func() bool { return f.auth.sets.Load() == 1 }, time.Second, 5*time.Millisecond)

	// the round armed for token-B must not inherit token-A's profile
	eventuallyState(t, g, StateResolving)
	assert.Equal(t, "token-B", f.auth.Token())
	_, held := f.auth.Profile()
	assert.False(t, held)

	// token-B resolves on its own round
	require.Eventually(t, func() bool {
		entry, ok := f.store.Get(profileKey)
		return ok && entry.Status == cache.StatusSuccess
	}, time.Second, 5*time.Millisecond)
	f.mock.Add(DefaultResolveTimeout)
	eventuallyState(t, g, StateResolvedPresent)
	require.Eventually(t, func() bool {
		_, held := f.auth.Profile()
		return held
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), f.auth.sets.Load())
}

func TestGate_ExternalProfileDuringClearIsKept(t *testing.T) {
	f := newGateFixture(t, "token")
	external := map[string]any{"id": "p-7"}
	var set sync.Once
	f.auth.beforeWrite = func() {
		set.Do(func() { f.auth.MemoryAuthStore.SetProfile(external) })
	}
	g := f.gate(t)

	f.mock.Add(DefaultResolveTimeout)
	require.Eventually(t, func() bool { return f.auth.clears.Load() == 1 }, time.Second, 5*time.Millisecond)

	eventuallyState(t, g, StateResolvedPresent)
	profile, held := f.auth.Profile()
	assert.True(t, held)
	assert.Equal(t, external, profile)
}

func TestGate_ListenersSeeChangesInOrder(t *testing.T) {
	f := newGateFixture(t, "token")
	g := f.gate(t)

	// the first listener logs out while the absent state is being delivered
	g.OnChange(func(s State) {
		if s == StateResolvedAbsent {
			f.auth.Logout()
		}
	})

	var mu sync.Mutex
	var seen []State
	g.OnChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	f.mock.Add(DefaultResolveTimeout)
	eventuallyState(t, g, StateNoToken)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateResolvedAbsent, StateNoToken}, seen)
}

func TestGate_LastDeliveredStateMatchesState(t *testing.T) {
	f := newGateFixture(t, "")
	g := f.gate(t)

	var last atomic.Value
	g.OnChange(func(s State) { last.Store(s) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if (i+j)%2 == 0 {
					f.auth.SetToken("token")
				} else {
					f.auth.SetToken("")
				}
			}
		}(i)
	}
	wg.Wait()

	delivered, _ := last.Load().(State)
	assert.Equal(t, g.State(), delivered)
}

func TestGate_UnsubscribedListenerStopsReceiving(t *testing.T) {
	f := newGateFixture(t, "")
	g := f.gate(t)

	var calls atomic.Int32
	remove := g.OnChange(func(State) { calls.Add(1) })

	f.auth.SetToken("token")
	remove()
	f.auth.SetToken("")

	assert.Equal(t, int32(1), calls.Load())
}
