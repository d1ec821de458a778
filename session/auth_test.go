package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryAuthStore_NotifiesOnlyOnChange(t *testing.T) {
	store := NewMemoryAuthStore("")

	notifications := 0
	unsubscribe := store.Subscribe(func() { notifications++ })

	store.SetToken("")
	store.ClearProfile()
	assert.Equal(t, 0, notifications)

	store.SetToken("abc")
	store.SetToken("abc")
	assert.Equal(t, 1, notifications)

	store.SetProfile(map[string]any{"id": "p-1"})
	store.SetProfile(map[string]any{"id": "p-1"})
	assert.Equal(t, 2, notifications)

	store.SetProfile(map[string]any{"id": "p-2"})
	assert.Equal(t, 3, notifications)

	store.Logout()
	store.Logout()
	assert.Equal(t, 4, notifications)
	assert.Equal(t, "", store.Token())
	_, held := store.Profile()
	assert.False(t, held)

	unsubscribe()
	store.SetToken("xyz")
	assert.Equal(t, 4, notifications)
}

func TestMemoryAuthStore_ConditionalWrites(t *testing.T) {
	store := NewMemoryAuthStore("token-A")
	rev := store.Revision()

	store.SetToken("token-B")
	assert.Greater(t, store.Revision(), rev)

	assert.False(t, store.SetProfileIf(rev, map[string]any{"id": "p-A"}), "a write for an older revision is dropped")
	_, held := store.Profile()
	assert.False(t, held)

	rev = store.Revision()
	assert.True(t, store.SetProfileIf(rev, map[string]any{"id": "p-B"}))
	profile, held := store.Profile()
	assert.True(t, held)
	assert.Equal(t, map[string]any{"id": "p-B"}, profile)

	assert.False(t, store.ClearProfileIf(rev), "the profile write moved the revision")
	_, held = store.Profile()
	assert.True(t, held)

	assert.True(t, store.ClearProfileIf(store.Revision()))
	_, held = store.Profile()
	assert.False(t, held)

	unchanged := store.Revision()
	store.ClearProfile()
	store.SetToken("token-B")
	assert.Equal(t, unchanged, store.Revision(), "no-op writes keep the revision")
}

func TestGuard(t *testing.T) {
	tests := []struct {
		state State
		want  Decision
	}{
		{state: StateNoToken, want: Decision{Redirect: RedirectLogin}},
		{state: StateResolving, want: Decision{Wait: true}},
		{state: StateResolvedAbsent, want: Decision{Redirect: RedirectProfileCreation}},
		{state: StateResolvedPresent, want: Decision{Allow: true}},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			got := Guard(tt.state)
			if got != tt.want {
				t.Errorf("Guard(%s) = %+v, want %+v", tt.state, got, tt.want)
			}
			if got.Denied() != (tt.want.Redirect != "") {
				t.Errorf("Denied() = %v", got.Denied())
			}
		})
	}
}
