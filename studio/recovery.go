package studio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Draft is the editable pair of a post.
type Draft struct {
	Title           string `json:"title"`
	ContentMarkdown string `json:"content_markdown"`
}

// RecoveryEntry is a locally kept copy of unsaved work.
type RecoveryEntry struct {
	Draft
	SavedAt time.Time `json:"saved_at"`
}

// RecoveryStore keeps at most one entry per post. Get returns nil, nil when
// nothing is stored.
type RecoveryStore interface {
	Get(ctx context.Context, postID uuid.UUID) (*RecoveryEntry, error)
	Set(ctx context.Context, postID uuid.UUID, entry RecoveryEntry) error
	Delete(ctx context.Context, postID uuid.UUID) error
}

type MemoryRecoveryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]RecoveryEntry
}

func NewMemoryRecoveryStore() *MemoryRecoveryStore {
	return &MemoryRecoveryStore{entries: make(map[uuid.UUID]RecoveryEntry)}
}

func (m *MemoryRecoveryStore) Get(_ context.Context, postID uuid.UUID) (*RecoveryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[postID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *MemoryRecoveryStore) Set(_ context.Context, postID uuid.UUID, entry RecoveryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[postID] = entry
	return nil
}

func (m *MemoryRecoveryStore) Delete(_ context.Context, postID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, postID)
	return nil
}

const recoveryKeyPrefix = "post-studio:draft:"

// RedisRecoveryStore keeps entries as JSON strings. A zero ttl keeps them
// until they are deleted.
type RedisRecoveryStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisRecoveryStore(client redis.UniversalClient, ttl time.Duration) *RedisRecoveryStore {
	return &RedisRecoveryStore{client: client, ttl: ttl}
}

// OpenRedisRecoveryStore connects to a redis:// URL such as REDIS_URL and
// checks the server answers before returning the store.
func OpenRedisRecoveryStore(ctx context.Context, url string, ttl time.Duration) (*RedisRecoveryStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisRecoveryStore(client, ttl), nil
}

func recoveryKey(postID uuid.UUID) string {
	return recoveryKeyPrefix + postID.String()
}

func (r *RedisRecoveryStore) Get(ctx context.Context, postID uuid.UUID) (*RecoveryEntry, error) {
	raw, err := r.client.Get(ctx, recoveryKey(postID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recovery entry: %w", err)
	}

	var entry RecoveryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// an unreadable entry cannot be offered; drop it
		if err := r.client.Del(ctx, recoveryKey(postID)).Err(); err != nil {
			return nil, fmt.Errorf("drop unreadable recovery entry: %w", err)
		}
		return nil, nil
	}
	return &entry, nil
}

func (r *RedisRecoveryStore) Set(ctx context.Context, postID uuid.UUID, entry RecoveryEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode recovery entry: %w", err)
	}
	if err := r.client.Set(ctx, recoveryKey(postID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("write recovery entry: %w", err)
	}
	return nil
}

func (r *RedisRecoveryStore) Delete(ctx context.Context, postID uuid.UUID) error {
	if err := r.client.Del(ctx, recoveryKey(postID)).Err(); err != nil {
		return fmt.Errorf("delete recovery entry: %w", err)
	}
	return nil
}

// meaningful reports whether an entry holds something the saved snapshot
// does not.
func (e *RecoveryEntry) meaningful(saved Draft) bool {
	if e == nil {
		return false
	}
	return e.Title != saved.Title || e.ContentMarkdown != saved.ContentMarkdown
}
