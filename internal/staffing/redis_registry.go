package staffing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry persists requests as JSON, one key per request id, plus
// an index set for listing. Update serialization uses process-local
// per-request locks, so the registry assumes a single writer process;
// deployments that need durable requests across restarts point here.
type RedisRegistry struct {
	redis *redis.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRedisRegistry creates a Redis-backed registry.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{
		redis: client,
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *RedisRegistry) key(id string) string {
	return fmt.Sprintf("staffing:request:%s", id)
}

const redisIndexKey = "staffing:requests"

// Create stores the request, bumping the id on a same-second collision.
func (r *RedisRegistry) Create(ctx context.Context, req *Request) (*Request, error) {
	now := time.Now().UTC()

	stored := cloneRequest(req)
	if stored.ID == "" {
		key := stored.StoreUserID
		if key == "" {
			key = stored.StoreRef
		}
		stored.ID = NewRequestID(key, now)
	}
	stored.RequiredCount = ClampRequiredCount(stored.RequiredCount)
	if stored.Status == "" {
		stored.Status = StatusPending
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	base := stored.ID
	for n := 2; ; n++ {
		data, err := json.Marshal(stored)
		if err != nil {
			return nil, fmt.Errorf("staffing: marshal request: %w", err)
		}
		set, err := r.redis.SetNX(ctx, r.key(stored.ID), data, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("staffing: create request: %w", err)
		}
		if set {
			break
		}
		stored.ID = fmt.Sprintf("%s_%d", base, n)
	}

	if err := r.redis.SAdd(ctx, redisIndexKey, stored.ID).Err(); err != nil {
		return nil, fmt.Errorf("staffing: index request: %w", err)
	}
	return stored, nil
}

// Get returns the request.
func (r *RedisRegistry) Get(ctx context.Context, id string) (*Request, error) {
	return r.load(ctx, id)
}

// List returns matching requests, newest first.
func (r *RedisRegistry) List(ctx context.Context, status Status) ([]*Request, error) {
	ids, err := r.redis.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("staffing: list requests: %w", err)
	}

	out := make([]*Request, 0, len(ids))
	for _, id := range ids {
		req, err := r.load(ctx, id)
		if err == ErrRequestNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies fn under the request's exclusive lock.
func (r *RedisRegistry) Update(ctx context.Context, id string, fn func(*Request) error) (*Request, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	req, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(req); err != nil {
		return nil, err
	}
	req.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("staffing: marshal request: %w", err)
	}
	if err := r.redis.Set(ctx, r.key(id), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("staffing: update request: %w", err)
	}
	return cloneRequest(req), nil
}

func (r *RedisRegistry) load(ctx context.Context, id string) (*Request, error) {
	data, err := r.redis.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("staffing: get request: %w", err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("staffing: unmarshal request: %w", err)
	}
	return &req, nil
}

func (r *RedisRegistry) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}
