package session

import (
	"log/slog"
	"sync"
)

// Store owns the player identity cell and the session lock. All mutation goes
// through its methods; callers get copies, never the live value.
type Store struct {
	mu       sync.Mutex
	identity *Identity
	lock     *Lock
	log      *slog.Logger
	onNotice []func(msg string)
}

func NewStore(lock *Lock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{lock: lock, log: logger}
	if lock != nil {
		lock.OnConflict(s.expire)
	}
	return s
}

// OnNotice registers a user-facing notice sink (a toast in the original UI).
func (s *Store) OnNotice(fn func(msg string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNotice = append(s.onNotice, fn)
}

// Identity returns a copy of the current identity, nil when logged out.
func (s *Store) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.clone()
}

// Token returns the bearer token, empty when unauthenticated.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.identity.Authenticated() {
		return ""
	}
	return s.identity.Token
}

// SetIdentity replaces the identity wholesale. A nil or tokenless identity
// clears the cell.
func (s *Store) SetIdentity(id *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !id.Authenticated() {
		s.identity = nil
		return
	}
	s.identity = id.clone()
}

// Login installs the identity and acquires the session lock together.
func (s *Store) Login(id *Identity) error {
	if s.lock != nil {
		if _, err := s.lock.Acquire(); err != nil {
			return err
		}
	}
	s.SetIdentity(id)
	return nil
}

// SetUserInfo is the reconciliation engine's designated setter: it swaps the
// UserInfo on the current identity. Returns false when the identity vanished
// mid-cycle, in which case nothing is written.
func (s *Store) SetUserInfo(info *UserInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.identity.Authenticated() {
		return false
	}
	next := s.identity.clone()
	if info != nil {
		cp := *info
		next.UserInfo = &cp
	} else {
		next.UserInfo = nil
	}
	s.identity = next
	return true
}

// Deauth clears the identity and releases the lock on both sides. This is the
// single invalidation path for logout and for any 401 observed anywhere.
func (s *Store) Deauth(reason string) {
	s.mu.Lock()
	had := s.identity != nil
	s.identity = nil
	s.mu.Unlock()
	if s.lock != nil {
		if err := s.lock.Release(); err != nil {
			s.log.Warn("lock release failed", "err", err)
		}
	}
	if had && reason != "" {
		s.notify(reason)
	}
}

// expire clears the identity after losing the lock to another instance. The
// shared token belongs to the winner, so only the local side is dropped.
func (s *Store) expire(reason string) {
	s.mu.Lock()
	had := s.identity != nil
	s.identity = nil
	s.mu.Unlock()
	if s.lock != nil {
		s.lock.Drop()
	}
	if had {
		s.notify(reason)
	}
}

// Validate checks the session lock; a mismatch deauthenticates this instance.
func (s *Store) Validate() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Validate()
}

func (s *Store) notify(msg string) {
	s.mu.Lock()
	sinks := append(([]func(string))(nil), s.onNotice...)
	s.mu.Unlock()
	for _, fn := range sinks {
		fn(msg)
	}
}
