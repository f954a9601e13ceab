package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Hash fields of a stored record.
const (
	fieldStatus   = "status"
	fieldResponse = "response"
)

// Record is one deduplicated operation's stored outcome.
type Record struct {
	Status   string
	Response []byte
}

// Store persists idempotency records and their execution locks.
type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key string) error
}

// RedisStore keeps each record as a hash and its lock as a separate SETNX
// key. Separate keys let the lock expire on its own schedule: a crashed
// holder frees the key after lockTTL while the record keeps its full TTL.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore builds a Store on the given Redis client.
func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{client: client, log: log}
}

// Lock claims the execution slot for key. Returns false without error when
// another holder already has it.
func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockKey(key), 1, lockTTL).Result()
	if err != nil {
		return false, s.fail("acquire idempotency lock", key, err)
	}

	return ok, nil
}

// Get loads the record for key, or nil when none exists.
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, recordKey(key)).Result()
	if err != nil {
		return nil, s.fail("fetch idempotency record", key, err)
	}

	if len(fields) == 0 {
		return nil, nil
	}

	return &Record{
		Status:   fields[fieldStatus],
		Response: []byte(fields[fieldResponse]),
	}, nil
}

// Set writes the record and its TTL in one round trip.
func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, recordKey(key),
		fieldStatus, record.Status,
		fieldResponse, string(record.Response))
	pipe.Expire(ctx, recordKey(key), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return s.fail("store idempotency record", key, err)
	}

	return nil
}

// ReleaseLock frees the execution slot for key.
func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockKey(key)).Err(); err != nil {
		return s.fail("release idempotency lock", key, err)
	}

	return nil
}

func (s *RedisStore) fail(op, key string, err error) error {
	s.log.Error("redis store: "+op+" failed",
		slog.String("key", key),
		slog.Any("error", err))
	return err
}

func recordKey(key string) string { return "idempotency:" + key }
func lockKey(key string) string   { return "idempotency:" + key + ":lock" }
