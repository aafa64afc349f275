// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package multipart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates the key does not exist or has expired.
var ErrCacheMiss = errors.New("multipart: cache miss")

// Store is the shared cache multipart state lives in. Entries carry a
// TTL; an abandoned upload disappears on its own.
type Store interface {
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// redisStore backs multipart state with Redis so uploads survive
// gateway restarts and are visible across replicas.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Store on top of an existing Redis client.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryStore is the in-process fallback used when no Redis address is
// configured. Expiry is checked lazily on read.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an in-process Store.
func NewMemoryStore() Store {
	return &memoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *memoryStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *memoryStore) GetBytes(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

func (s *memoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}
