package staffing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrRequestNotFound  = errors.New("staffing: request not found")
	ErrRequestClosed    = errors.New("staffing: request is closed")
	ErrNotApplicant     = errors.New("staffing: pharmacist has not applied")
	ErrAlreadyConfirmed = errors.New("staffing: pharmacist already confirmed")
)

// Registry stores staffing requests. Mutations to a single request are
// serialized: Update holds that request id's exclusive lock for the
// whole read-modify-write, so an accept and its fill check are atomic
// with respect to concurrent accepts on the same request.
type Registry interface {
	// Create assigns an id (when blank), stamps timestamps, sets status
	// pending, and stores the request. The stored copy is returned.
	Create(ctx context.Context, req *Request) (*Request, error)
	Get(ctx context.Context, id string) (*Request, error)
	// List returns requests with the given status, newest first; an
	// empty status returns everything.
	List(ctx context.Context, status Status) ([]*Request, error)
	// Update runs fn on the request under its exclusive lock and
	// persists the result. fn returning an error abandons the write.
	Update(ctx context.Context, id string, fn func(*Request) error) (*Request, error)
}

// MemoryRegistry is the in-process Registry. Requests are stored by
// value; readers get copies and writers go through per-request locks.
type MemoryRegistry struct {
	mu       sync.RWMutex
	requests map[string]*Request
	locks    map[string]*sync.Mutex
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		requests: make(map[string]*Request),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Create stores the request, bumping the id on a same-second collision.
func (r *MemoryRegistry) Create(ctx context.Context, req *Request) (*Request, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneRequest(req)
	if stored.ID == "" {
		key := stored.StoreUserID
		if key == "" {
			key = stored.StoreRef
		}
		stored.ID = NewRequestID(key, now)
	}
	base := stored.ID
	for n := 2; ; n++ {
		if _, taken := r.requests[stored.ID]; !taken {
			break
		}
		stored.ID = fmt.Sprintf("%s_%d", base, n)
	}

	stored.RequiredCount = ClampRequiredCount(stored.RequiredCount)
	if stored.Status == "" {
		stored.Status = StatusPending
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.requests[stored.ID] = stored
	return cloneRequest(stored), nil
}

// Get returns a copy of the request.
func (r *MemoryRegistry) Get(ctx context.Context, id string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return cloneRequest(req), nil
}

// List returns matching requests, newest first.
func (r *MemoryRegistry) List(ctx context.Context, status Status) ([]*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Request, 0, len(r.requests))
	for _, req := range r.requests {
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies fn under the request's exclusive lock.
func (r *MemoryRegistry) Update(ctx context.Context, id string, fn func(*Request) error) (*Request, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	stored, ok := r.requests[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRequestNotFound
	}

	req := cloneRequest(stored)
	if err := fn(req); err != nil {
		return nil, err
	}
	req.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	r.requests[id] = req
	r.mu.Unlock()
	return cloneRequest(req), nil
}

func (r *MemoryRegistry) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

func cloneRequest(req *Request) *Request {
	out := *req
	out.Applicants = append([]string(nil), req.Applicants...)
	out.Confirmed = append([]string(nil), req.Confirmed...)
	out.Notified = append([]string(nil), req.Notified...)
	return &out
}
