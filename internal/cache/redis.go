package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/espressojuice/dealereye/internal/utils"
)

// RedisConfig carries connection settings for the Redis cache.
type RedisConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
}

// RedisProvider implements Provider on a Redis server.
type RedisProvider struct {
	client *redis.Client
}

// NewRedisProvider connects to Redis and verifies the connection with a ping
// so misconfiguration surfaces at boot, not on the first query.
func NewRedisProvider(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, utils.NewAppError("cache.NewRedisProvider", "ping redis", err)
	}
	return &RedisProvider{client: client}, nil
}

// Get fetches a key, translating a Redis nil reply into ErrCacheMiss.
func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := p.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, utils.NewAppError("cache.RedisProvider.Get", "get key", err)
	}
	return data, nil
}

// Set stores a key with the given TTL.
func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := p.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return utils.NewAppError("cache.RedisProvider.Set", "set key", err)
	}
	return nil
}

// SetNX stores a key only if absent, reporting whether the write happened.
func (p *RedisProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := p.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, utils.NewAppError("cache.RedisProvider.SetNX", "setnx key", err)
	}
	return ok, nil
}

// Del removes a key.
func (p *RedisProvider) Del(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, key).Err(); err != nil {
		return utils.NewAppError("cache.RedisProvider.Del", "del key", err)
	}
	return nil
}

// Close releases the client's connection pool.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}
