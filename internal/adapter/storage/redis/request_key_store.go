package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RequestKeyStore implements ports.RequestKeyStore using Redis SET NX.
type RequestKeyStore struct {
	client *goredis.Client
}

// NewRequestKeyStore creates a new Redis-backed request key store.
func NewRequestKeyStore(client *goredis.Client) *RequestKeyStore {
	return &RequestKeyStore{client: client}
}

// Claim atomically records key. It returns true if the key is new and
// false if it was already claimed within ttl.
func (s *RequestKeyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis request key claim: %w", err)
	}
	return result == "OK", nil
}

// Release deletes a claimed key.
func (s *RequestKeyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis request key release: %w", err)
	}
	return nil
}
