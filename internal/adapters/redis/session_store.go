package redis

// Package redis provides Redis-based adapters for lotledger.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/ports"
)

// ErrNotFound is returned when a session is not found.
var ErrNotFound = ports.ErrSessionNotFound

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStore is a Redis-based session store for production use.
// Keys expire at the session's ExpiresAt.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, "session:")
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix, now: time.Now}
}

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.Token == "" {
		return errors.New("session token cannot be empty")
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.prefix+sess.Token, data, ttl).Err()
}

// Get returns the stored record, including revoked ones; callers decide
// whether it still authenticates.
func (s *SessionStore) Get(ctx context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if !s.now().Before(sess.ExpiresAt) {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

// Revoke rewrites the record with Revoked set, keeping the remaining TTL.
// The write only applies if the key still exists, so an expired session is
// never resurrected.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sess, err := s.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sess.Revoked {
		return nil
	}
	sess.Revoked = true

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	err = s.client.SetArgs(ctx, s.prefix+token, data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis revoke: %w", err)
	}
	return nil
}

// Each calls fn for every stored session under the prefix along with the
// key's remaining TTL. Records that fail to decode are skipped.
func (s *SessionStore) Each(ctx context.Context, fn func(sess domainauth.Session, ttl time.Duration) error) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis get %q: %w", key, err)
		}
		var sess domainauth.Session
		if json.Unmarshal(data, &sess) != nil {
			continue
		}
		ttl, err := s.client.TTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redis ttl %q: %w", key, err)
		}
		if err := fn(sess, ttl); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}
