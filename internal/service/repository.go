package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionRepository persists session overlays.
type SessionRepository interface {
	Load(ctx context.Context, id string) (Overlay, bool, error)
	Save(ctx context.Context, id string, o Overlay) error
}

// MemoryRepository keeps overlays in process. It is the default when no
// Redis URL is configured. Like the Redis repository, an overlay expires ttl
// after its last Save; a zero ttl keeps overlays forever.
type MemoryRepository struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	overlays map[string]memoryEntry
}

type memoryEntry struct {
	overlay Overlay
	savedAt time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	return &MemoryRepository{ttl: ttl, now: time.Now, overlays: make(map[string]memoryEntry)}
}

func (r *MemoryRepository) Load(ctx context.Context, id string) (Overlay, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.overlays[id]
	if !ok || r.expired(e) {
		return Overlay{}, false, nil
	}
	return e.overlay, true, nil
}

func (r *MemoryRepository) Save(ctx context.Context, id string, o Overlay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlays[id] = memoryEntry{overlay: o, savedAt: r.now()}
	return nil
}

// Delete removes an overlay.
func (r *MemoryRepository) Delete(id string) {
	r.mu.Lock()
	delete(r.overlays, id)
	r.mu.Unlock()
}

// Sweep deletes expired overlays and returns how many were removed.
func (r *MemoryRepository) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.overlays {
		if r.expired(e) {
			delete(r.overlays, id)
			n++
		}
	}
	return n
}

// Len returns the number of overlays held, expired or not.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.overlays)
}

func (r *MemoryRepository) expired(e memoryEntry) bool {
	return r.ttl > 0 && r.now().Sub(e.savedAt) > r.ttl
}

// RedisRepository stores overlays as JSON under "session:<id>" with a TTL,
// so sessions survive restarts and can be shared between instances.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisRepository connects to url (redis://...) and pings it.
func NewRedisRepository(ctx context.Context, url string, ttl time.Duration, logger *zap.Logger) (*RedisRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisRepository{client: client, ttl: ttl, logger: logger}, nil
}

func (r *RedisRepository) Load(ctx context.Context, id string) (Overlay, bool, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Overlay{}, false, nil
	}
	if err != nil {
		r.logger.Error("Failed to load session", zap.String("session", id), zap.Error(err))
		return Overlay{}, false, fmt.Errorf("session load error: %w", err)
	}

	var o Overlay
	if err := json.Unmarshal(data, &o); err != nil {
		return Overlay{}, false, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return o, true, nil
}

func (r *RedisRepository) Save(ctx context.Context, id string, o Overlay) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, sessionKey(id), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save session", zap.String("session", id), zap.Error(err))
		return fmt.Errorf("session save error: %w", err)
	}

	r.logger.Debug("Session saved", zap.String("session", id), zap.Duration("ttl", r.ttl))
	return nil
}

// Close closes the Redis client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func sessionKey(id string) string {
	return "session:" + id
}
