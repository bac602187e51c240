package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions as JSON blobs, one key per user, no TTL.
// Every mutation is a read-modify-write of the whole blob, which is fine
// because a given user's events are handled one at a time.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) key(userID string) string {
	return fmt.Sprintf("chat:session:%s", userID)
}

// GetOrCreate returns the user's session, creating one on first contact.
func (s *RedisStore) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	sess, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess.LastActivity = time.Now().UTC()
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SetRole records the user's role.
func (s *RedisStore) SetRole(ctx context.Context, userID string, role Role) error {
	return s.mutate(ctx, userID, func(sess *Session) {
		sess.Role = role
	})
}

// SetStep moves the user's conversation to the given step.
func (s *RedisStore) SetStep(ctx context.Context, userID string, step Step) error {
	return s.mutate(ctx, userID, func(sess *Session) {
		sess.Step = step
	})
}

// SetDraftField stores one draft field, overwriting any prior value.
func (s *RedisStore) SetDraftField(ctx context.Context, userID, key, value string) error {
	return s.mutate(ctx, userID, func(sess *Session) {
		if sess.Draft == nil {
			sess.Draft = make(map[string]string)
		}
		sess.Draft[key] = value
	})
}

// GetDraftField returns the stored value or "" when unset.
func (s *RedisStore) GetDraftField(ctx context.Context, userID, key string) (string, error) {
	sess, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}
	return sess.DraftField(key), nil
}

// ClearDraft drops the draft and returns the user to Idle.
func (s *RedisStore) ClearDraft(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(sess *Session) {
		sess.Draft = make(map[string]string)
		sess.Step = StepIdle
	})
}

func (s *RedisStore) mutate(ctx context.Context, userID string, fn func(*Session)) error {
	sess, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	fn(sess)
	sess.LastActivity = time.Now().UTC()
	return s.save(ctx, sess)
}

func (s *RedisStore) load(ctx context.Context, userID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return newSession(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	if sess.Draft == nil {
		sess.Draft = make(map[string]string)
	}
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(sess.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("session: set: %w", err)
	}
	return nil
}
