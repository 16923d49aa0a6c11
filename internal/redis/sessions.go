package redisx

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Sessions tracks revoked session keys until their tokens would have expired.
type Sessions struct{ client *redis.Client }

func NewSessions(client *redis.Client) *Sessions {
	return &Sessions{client: client}
}

func (s *Sessions) key(sessionKey string) string {
	return fmt.Sprintf("revoked_session:%s", sessionKey)
}

// Revoke blocks sessionKey until expiresAt. Already-expired sessions are ignored.
func (s *Sessions) Revoke(ctx context.Context, sessionKey string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(sessionKey), "1", ttl).Err()
}

func (s *Sessions) IsRevoked(ctx context.Context, sessionKey string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(sessionKey)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
