// Package artifacts keeps exported files available for download for a
// limited time.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spherical/pdf-inspector/internal/config"
	"github.com/spherical/pdf-inspector/internal/export"
)

// ErrNotFound indicates a missing or expired artifact.
var ErrNotFound = errors.New("artifact not found")

// Store holds artifacts by ID.
type Store interface {
	Put(ctx context.Context, a *export.Artifact) (string, error)
	Get(ctx context.Context, id string) (*export.Artifact, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// New builds the store selected by the cache configuration.
func New(cfg config.CacheConfig) (Store, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedisStore(cfg.Redis, cfg.TTL)
	case "memory", "":
		return NewMemoryStore(cfg.MaxEntries, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown artifact store %q", cfg.Driver)
	}
}

// record is the stored form of an artifact.
type record struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// RedisStore implements Store using Redis with a per-key TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "pdfi:"
	}
	return &RedisStore{client: client, prefix: prefix + "artifact:", ttl: ttl}, nil
}

func (s *RedisStore) Put(ctx context.Context, a *export.Artifact) (string, error) {
	data, err := json.Marshal(record{Filename: a.Filename, ContentType: a.ContentType, Data: a.Data})
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}
	id := uuid.NewString()
	if err := s.client.Set(ctx, s.prefix+id, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*export.Artifact, error) {
	val, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var r record
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return &export.Artifact{Filename: r.Filename, ContentType: r.ContentType, Data: r.Data}, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore implements Store in process.
type MemoryStore struct {
	mu         sync.RWMutex
	data       map[string]entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

type entry struct {
	artifact  *export.Artifact
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store. A zero ttl keeps entries until
// evicted.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	s := &MemoryStore{
		data:       make(map[string]entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go s.cleanup()
	return s
}

func (s *MemoryStore) Put(ctx context.Context, a *export.Artifact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) >= s.maxEntries {
		s.evictOldest()
	}
	id := uuid.NewString()
	e := entry{artifact: a}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.data[id] = e
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*export.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[id]
	if !ok || s.expired(e) {
		return nil, ErrNotFound
	}
	return e.artifact, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// Close stops the cleanup loop.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) expired(e entry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

// evictOldest removes the entry with the earliest expiration.
func (s *MemoryStore) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, e := range s.data {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = e.expiresAt
		}
	}
	if oldestKey != "" {
		delete(s.data, oldestKey)
	}
}

// cleanup periodically removes expired entries.
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.data {
		if s.expired(e) {
			delete(s.data, key)
		}
	}
}
