package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// RevocationCache remembers refresh tokens already known to be dead so a
// replayed token is rejected without a store lookup. It only ever holds
// negatives; the refresh-token store stays authoritative.
type RevocationCache interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
	MarkRevoked(ctx context.Context, token string, ttl time.Duration) error
}

type NoopRevocationCache struct{}

func (NoopRevocationCache) IsRevoked(context.Context, string) (bool, error) { return false, nil }

func (NoopRevocationCache) MarkRevoked(context.Context, string, time.Duration) error { return nil }

type InMemoryRevocationCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewInMemoryRevocationCache() *InMemoryRevocationCache {
	return &InMemoryRevocationCache{entries: make(map[string]time.Time), now: time.Now}
}

func (c *InMemoryRevocationCache) IsRevoked(_ context.Context, token string) (bool, error) {
	key := tokenDigest(token)
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if c.now().After(expiresAt) {
		delete(c.entries, key)
		return false, nil
	}
	return true, nil
}

func (c *InMemoryRevocationCache) MarkRevoked(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, exp := range c.entries {
		if now.After(exp) {
			delete(c.entries, k)
		}
	}
	c.entries[tokenDigest(token)] = now.Add(ttl)
	return nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
