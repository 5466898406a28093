// Package session holds the persisted snapshot of the authenticated user.
// The store is the only writer of the snapshot; a persistence binding
// mirrors every mutation into the auth-storage cookie so the edge
// gatekeeper can read the same state on the next request without a
// database call.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

// CookieName is the cross-context contract between the store and the edge
// gatekeeper. Any change to the snapshot shape must stay in lockstep with
// Decode below.
const CookieName = "auth-storage"

// SnapshotVersion tags the persisted envelope so a future shape change can
// migrate or discard old cookies.
const SnapshotVersion = 0

// Snapshot is the persisted envelope, shape {"state":{"user":...},"version":N}.
type Snapshot struct {
	State   State `json:"state"`
	Version int   `json:"version"`
}

// State wraps the nullable user record. User == nil iff no authenticated
// session exists.
type State struct {
	User *models.User `json:"user"`
}

// Decode parses a raw cookie value into a snapshot. A malformed payload is
// an error for the caller to log; it must never fail the request.
func Decode(raw string) (*Snapshot, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty snapshot payload")
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("malformed session snapshot: %w", err)
	}
	return &snap, nil
}

// Encode serializes a snapshot for the cookie.
func Encode(snap Snapshot) (string, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encoding session snapshot: %w", err)
	}
	return string(b), nil
}

// Persister receives every settled snapshot. The cookie binding in
// cookie.go is the production implementation.
type Persister interface {
	Persist(snap Snapshot)
}

// UserPatch is a partial profile update. Nil fields are left untouched.
type UserPatch struct {
	Name      *string
	Email     *string
	AvatarURL *string
	Role      *models.Role
	IsActive  *bool
}

// Store is the single authoritative in-memory representation of the
// current user for one client session. Mutations go through SetUser,
// ClearUser and UpdateUser only, each an atomic whole-or-merged
// replacement, so readers never observe a partial record.
type Store struct {
	mu        sync.RWMutex
	user      *models.User
	persister Persister
	logger    *zap.Logger
}

// NewStore builds a store with an optional persistence binding. A nil
// persister keeps the store memory-only, which the tests use.
func NewStore(p Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{persister: p, logger: logger}
}

// SetUser replaces the stored user wholesale and persists the snapshot.
// Repeated identical calls are idempotent.
func (s *Store) SetUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.user = nil
	} else {
		copied := *u
		s.user = &copied
	}
	s.persistLocked()
}

// ClearUser drops the session and persists the empty snapshot.
func (s *Store) ClearUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.persistLocked()
}

// UpdateUser merges non-nil fields into the current user. Without a
// pre-existing whole record this is a no-op, not an error: a merge must
// never fabricate a partial user.
func (s *Store) UpdateUser(patch UserPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		s.logger.Debug("UpdateUser ignored, no user in session store")
		return
	}
	if patch.Name != nil {
		s.user.Name = *patch.Name
	}
	if patch.Email != nil {
		s.user.Email = *patch.Email
	}
	if patch.AvatarURL != nil {
		s.user.AvatarURL = *patch.AvatarURL
	}
	if patch.Role != nil {
		s.user.Role = *patch.Role
	}
	if patch.IsActive != nil {
		s.user.IsActive = *patch.IsActive
	}
	s.persistLocked()
}

// User returns a copy of the stored user, or nil.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	copied := *s.user
	return &copied
}

// IsAuthenticated reports whether a user is currently stored.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Snapshot returns the envelope that would be persisted right now.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	var u *models.User
	if s.user != nil {
		copied := *s.user
		u = &copied
	}
	return Snapshot{State: State{User: u}, Version: SnapshotVersion}
}

func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	s.persister.Persist(s.snapshotLocked())
}
