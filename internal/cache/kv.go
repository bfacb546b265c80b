package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss key does not exist
var ErrCacheMiss = errors.New("cache miss")

// KVStore key-value backend of the stats cache (swapped for a fake in unit tests)
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore go-redis backed KVStore
type RedisKVStore struct {
	client *redis.Client
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// MemoryKVStore process-local KVStore, used when Redis is disabled in local runs
// Not shared between replicas.
type MemoryKVStore struct {
	mu   sync.RWMutex
	data map[string]memoryItem
}

type memoryItem struct {
	value   string
	expires time.Time // zero = no ttl
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expires.IsZero() && now.After(i.expires)
}

func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{data: make(map[string]memoryItem)}
}

func (m *MemoryKVStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	item, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrCacheMiss
	}
	if item.expired(time.Now()) {
		m.mu.Lock()
		// a Set may have landed between the two locks
		if cur, ok := m.data[key]; ok && cur.expired(time.Now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return "", ErrCacheMiss
	}
	return item.value, nil
}

func (m *MemoryKVStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = memoryItem{value: value, expires: exp}
	m.mu.Unlock()
	return nil
}
