// Package memstore provides a process-local session store for single-node
// deployments and development.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/ports"
)

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStore keeps sessions in a map guarded by a RWMutex. Expired
// records are dropped lazily on read and by Sweep.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domainauth.Session
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domainauth.Session), now: time.Now}
}

func (s *SessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.Token == "" {
		return errors.New("session token cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return nil
}

func (s *SessionStore) Get(_ context.Context, token string) (domainauth.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	if !s.now().Before(sess.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	return sess, nil
}

// Revoke marks the session revoked under the write lock, so any Get that
// starts after Revoke returns observes it.
func (s *SessionStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[token]; ok {
		sess.Revoked = true
		s.sessions[token] = sess
	}
	return nil
}

// Sweep removes expired records and returns how many were dropped.
func (s *SessionStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for tok, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, tok)
			n++
		}
	}
	return n
}

// Len returns the number of stored records.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
