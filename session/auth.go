package session

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// AuthStore holds the session token and the resolved profile. It is owned
// outside the gate; the gate only reads it, writes the profile it resolved and
// follows its changes.
type AuthStore interface {
	Token() string
	Profile() (any, bool)
	// Revision increases on every change of the token or the profile.
	Revision() uint64
	// SetProfileIf stores profile only while the store is still at revision
	// rev and reports whether it did.
	SetProfileIf(rev uint64, profile any) bool
	// ClearProfileIf clears the profile only while the store is still at
	// revision rev and reports whether it did.
	ClearProfileIf(rev uint64) bool
	// Subscribe registers fn to run after every change and returns a
	// function that removes it.
	Subscribe(fn func()) (unsubscribe func())
}

// MemoryAuthStore is an in-memory AuthStore. Listeners run only when a value
// actually changes, outside the store lock. It also serves as the transport's
// token source.
type MemoryAuthStore struct {
	mu      sync.RWMutex
	token   string
	profile any
	held    bool
	rev     uint64

	listeners *xsync.MapOf[uint64, func()]
	nextID    atomic.Uint64
}

// NewMemoryAuthStore creates a store holding token and no profile.
func NewMemoryAuthStore(token string) *MemoryAuthStore {
	return &MemoryAuthStore{
		token:     token,
		listeners: xsync.NewMapOf[uint64, func()](),
	}
}

func (s *MemoryAuthStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryAuthStore) Profile() (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile, s.held
}

func (s *MemoryAuthStore) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// SetToken replaces the token. An empty token logs the session out.
func (s *MemoryAuthStore) SetToken(token string) {
	s.mu.Lock()
	changed := s.token != token
	s.token = token
	s.bump(changed)
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *MemoryAuthStore) SetProfile(profile any) {
	s.mu.Lock()
	changed := s.setProfile(profile)
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *MemoryAuthStore) SetProfileIf(rev uint64, profile any) bool {
	s.mu.Lock()
	if s.rev != rev {
		s.mu.Unlock()
		return false
	}
	changed := s.setProfile(profile)
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return true
}

func (s *MemoryAuthStore) ClearProfile() {
	s.mu.Lock()
	changed := s.clearProfile()
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *MemoryAuthStore) ClearProfileIf(rev uint64) bool {
	s.mu.Lock()
	if s.rev != rev {
		s.mu.Unlock()
		return false
	}
	changed := s.clearProfile()
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return true
}

// setProfile must be called with s.mu held.
func (s *MemoryAuthStore) setProfile(profile any) bool {
	changed := !s.held || !reflect.DeepEqual(s.profile, profile)
	s.profile, s.held = profile, true
	s.bump(changed)
	return changed
}

// clearProfile must be called with s.mu held.
func (s *MemoryAuthStore) clearProfile() bool {
	changed := s.held
	s.profile, s.held = nil, false
	s.bump(changed)
	return changed
}

func (s *MemoryAuthStore) bump(changed bool) {
	if changed {
		s.rev++
	}
}

// Logout clears token and profile with a single notification.
func (s *MemoryAuthStore) Logout() {
	s.mu.Lock()
	changed := s.token != "" || s.held
	s.token, s.profile, s.held = "", nil, false
	s.bump(changed)
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *MemoryAuthStore) Subscribe(fn func()) func() {
	id := s.nextID.Add(1)
	s.listeners.Store(id, fn)
	return func() {
		s.listeners.Delete(id)
	}
}

func (s *MemoryAuthStore) notify() {
	s.listeners.Range(func(_ uint64, fn func()) bool {
		fn()
		return true
	})
}
