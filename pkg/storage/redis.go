package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements ObjectStore on top of Redis. The locator's Endpoint
// is the Redis address and its SecretKey the password; the bucket and key
// are folded into a single Redis key.
//
// A client is built for every call and closed afterwards, and commands are
// not retried.
type RedisStore struct {
	// DB is the Redis database number.
	DB int
	// TTL expires stored models. Zero keeps them indefinitely.
	TTL time.Duration
}

// NewRedisStore creates a Redis-backed object store.
func NewRedisStore(db int, ttl time.Duration) (*RedisStore, error) {
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl < 0 {
		return nil, errors.New("redis ttl must be >= 0")
	}
	return &RedisStore{DB: db, TTL: ttl}, nil
}

// redisKey returns the key an object is stored under:
// "ticketcast:model:{bucket}:{key}".
func redisKey(loc Locator) string {
	return fmt.Sprintf("ticketcast:model:%s:%s", loc.Bucket, loc.Key)
}

func (r *RedisStore) client(loc Locator) (*redis.Client, error) {
	if loc.Endpoint == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	return redis.NewClient(&redis.Options{
		Addr:         loc.Endpoint,
		Username:     loc.AccessKey,
		Password:     loc.SecretKey,
		DB:           r.DB,
		MaxRetries:   -1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     1,
	}), nil
}

// Put stores data under the locator's key, replacing any existing value.
func (r *RedisStore) Put(ctx context.Context, loc Locator, data []byte) error {
	client, err := r.client(loc)
	if err != nil {
		return &StorageError{Op: "put", Bucket: loc.Bucket, Key: loc.Key, Err: err}
	}
	defer client.Close()

	if err := client.Set(ctx, redisKey(loc), data, r.TTL).Err(); err != nil {
		return &StorageError{Op: "put", Bucket: loc.Bucket, Key: loc.Key, Err: redisError(err)}
	}
	return nil
}

// Get returns the value stored under the locator's key.
func (r *RedisStore) Get(ctx context.Context, loc Locator) ([]byte, error) {
	client, err := r.client(loc)
	if err != nil {
		return nil, &StorageError{Op: "get", Bucket: loc.Bucket, Key: loc.Key, Err: err}
	}
	defer client.Close()

	data, err := client.Get(ctx, redisKey(loc)).Bytes()
	if err != nil {
		return nil, &StorageError{Op: "get", Bucket: loc.Bucket, Key: loc.Key, Err: redisError(err)}
	}
	return data, nil
}

// Ping checks that the Redis server at loc.Endpoint is reachable.
func (r *RedisStore) Ping(ctx context.Context, loc Locator) error {
	client, err := r.client(loc)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping(ctx).Err()
}

func redisError(err error) error {
	switch {
	case errors.Is(err, redis.Nil):
		return ErrNotFound
	case isRedisAuthError(err):
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	default:
		return err
	}
}

func isRedisAuthError(err error) bool {
	var rerr redis.Error
	if !errors.As(err, &rerr) {
		return false
	}
	msg := rerr.Error()
	return strings.HasPrefix(msg, "NOAUTH") || strings.HasPrefix(msg, "WRONGPASS")
}
