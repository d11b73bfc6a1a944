package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keyxmakerx/accounts/internal/cache"
)

// sessionKeyPrefix is the cache key prefix for refresh sessions.
const sessionKeyPrefix = "refresh_session:"

// sessionRecord is the JSON value stored for a live refresh token.
type sessionRecord struct {
	UserID string `json:"user_id"`
}

// SessionStore maps live refresh tokens to their user. A token is usable
// for refresh only while its record exists; expiry and deletion look the
// same to readers.
type SessionStore interface {
	Put(ctx context.Context, refreshToken, userID string, ttl time.Duration) error
	Get(ctx context.Context, refreshToken string) (userID string, found bool, err error)

	// Take reads and removes the record in one atomic step. Of several
	// concurrent callers with the same token, at most one finds it.
	Take(ctx context.Context, refreshToken string) (userID string, found bool, err error)

	Delete(ctx context.Context, refreshToken string) error
}

// sessionStore implements SessionStore over a TTL cache.
type sessionStore struct {
	cache cache.TTLCache
}

// NewSessionStore creates a session store backed by the given cache.
func NewSessionStore(c cache.TTLCache) SessionStore {
	return &sessionStore{cache: c}
}

func (s *sessionStore) Put(ctx context.Context, refreshToken, userID string, ttl time.Duration) error {
	data, err := json.Marshal(sessionRecord{UserID: userID})
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := s.cache.Set(ctx, sessionKeyPrefix+refreshToken, data, ttl); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

func (s *sessionStore) Get(ctx context.Context, refreshToken string) (string, bool, error) {
	data, found, err := s.cache.Get(ctx, sessionKeyPrefix+refreshToken)
	if err != nil || !found {
		return "", false, err
	}
	return decodeSession(data)
}

func (s *sessionStore) Take(ctx context.Context, refreshToken string) (string, bool, error) {
	data, found, err := s.cache.GetDel(ctx, sessionKeyPrefix+refreshToken)
	if err != nil || !found {
		return "", false, err
	}
	return decodeSession(data)
}

func (s *sessionStore) Delete(ctx context.Context, refreshToken string) error {
	if err := s.cache.Delete(ctx, sessionKeyPrefix+refreshToken); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// decodeSession unmarshals a stored record.
func decodeSession(data []byte) (string, bool, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", false, fmt.Errorf("unmarshaling session: %w", err)
	}
	return rec.UserID, true, nil
}
