package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces session documents in Redis.
const keyPrefix = "session:"

// LockTTL bounds how long a per-identifier processing lock can be held, so a
// crashed worker cannot wedge an identifier forever.
const LockTTL = 10 * time.Second

// ErrLocked is returned by Lock when another worker currently holds the
// identifier's lock.
var ErrLocked = errors.New("session is locked by another worker")

// Store is the persistence contract for sessions.  Get on an absent key
// returns a fresh default session, never an error; Put always refreshes the
// TTL.  Lock/Unlock provide short-lived per-identifier mutual exclusion
// around the read-advance-write cycle so two near-simultaneous messages from
// the same user cannot lose an update.
type Store interface {
	Get(ctx context.Context, key string) (*Session, error)
	Put(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, key string) error
	// Keys lists the identifiers of all stored sessions. Administrative only.
	Keys(ctx context.Context) ([]string, error)
	Lock(ctx context.Context, key string) (func(), error)
}

// RedisStore persists sessions in Redis with a per-document TTL, mirroring
// the SETEX-based layout the bot has always used.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing Redis client.  ttl <= 0 uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get loads the session for key.  An absent key yields New(key).
func (s *RedisStore) Get(ctx context.Context, key string) (*Session, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return New(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get %s: %w", key, err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// A malformed document is unrecoverable; start the user over rather
		// than failing every subsequent message.
		slog.Warn("session: discarding malformed document", "key", key, "err", err)
		return New(key), nil
	}
	if sess.Sender == "" {
		sess.Sender = key
	}
	return &sess, nil
}

// Put writes the session under its sender key and refreshes the TTL.
func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session marshal %s: %w", sess.Sender, err)
	}
	if err := s.client.Set(ctx, keyPrefix+sess.Sender, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session put %s: %w", sess.Sender, err)
	}
	return nil
}

// Delete removes the session document. Deleting an absent key is a no-op.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("session delete %s: %w", key, err)
	}
	return nil
}

// Keys lists all session identifiers.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var out []string
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val()[len(keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("session keys: %w", err)
	}
	return out, nil
}

// Lock acquires the short-lived processing lock for key and returns the
// release function.  SET NX with a TTL: a crashed holder is recovered when
// the TTL lapses.
func (s *RedisStore) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := "lock:" + keyPrefix + key
	ok, err := s.client.SetNX(ctx, lockKey, "1", LockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("session lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		if err := s.client.Del(context.Background(), lockKey).Err(); err != nil {
			slog.Warn("session: failed to release lock", "key", key, "err", err)
		}
	}, nil
}
