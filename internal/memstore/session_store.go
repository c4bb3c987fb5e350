package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitlab.com/yelinaung/expense-claims/internal/models"
)

type session struct {
	userID    string
	expiresAt time.Time
}

// SessionStore keeps login sessions in memory, keyed by token hash.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session
	users    *UserStore
}

// NewSessionStore creates an empty SessionStore resolving owners from users.
func NewSessionStore(users *UserStore) *SessionStore {
	return &SessionStore{sessions: make(map[string]session), users: users}
}

// Create stores a session for userID that expires at expiresAt.
func (s *SessionStore) Create(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tokenHash] = session{userID: userID, expiresAt: expiresAt}
	return nil
}

// GetUser returns the owner of an unexpired session.
func (s *SessionStore) GetUser(ctx context.Context, tokenHash string) (*models.User, error) {
	s.mu.RLock()
	sess, ok := s.sessions[tokenHash]
	s.mu.RUnlock()

	if !ok || !now().Before(sess.expiresAt) {
		return nil, fmt.Errorf("failed to get session: %w", models.ErrNotFound)
	}
	return s.users.GetByID(ctx, sess.userID)
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *SessionStore) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

// DeleteExpired removes every expired session and returns how many were removed.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	ts := now()
	for hash, sess := range s.sessions {
		if !ts.Before(sess.expiresAt) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}
