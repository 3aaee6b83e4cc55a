// Package tokenstore remembers revoked access tokens until they would have expired anyway.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suteetoe/tradeflow/pkg/config"
)

// Blacklist records revoked token IDs (the jti claim)
type Blacklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Close() error
}

// New returns a Redis blacklist when an address is configured and an in-memory one otherwise
func New(cfg *config.RedisConfig) (Blacklist, error) {
	if cfg.Addr == "" {
		return NewMemoryBlacklist(), nil
	}
	return NewRedisBlacklist(cfg)
}

// RedisBlacklist shares revocations across instances
type RedisBlacklist struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisBlacklist(cfg *config.RedisConfig) (*RedisBlacklist, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for token blacklist: %w", err)
	}
	return NewRedisBlacklistWithClient(client), nil
}

// NewRedisBlacklistWithClient wraps an existing client
func NewRedisBlacklistWithClient(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client, keyPrefix: "tradeflow:token:revoked:"}
}

func (b *RedisBlacklist) key(jti string) string {
	return b.keyPrefix + jti
}

func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := b.client.Get(ctx, b.key(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return true, nil
}

func (b *RedisBlacklist) Close() error {
	return b.client.Close()
}

// MemoryBlacklist is process-local; revocations are lost on restart and not shared
// between replicas
type MemoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{entries: make(map[string]time.Time), now: time.Now}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for id, exp := range b.entries {
		if now.After(exp) {
			delete(b.entries, id)
		}
	}
	b.entries[jti] = now.Add(ttl)
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	exp, ok := b.entries[jti]
	if !ok {
		return false, nil
	}
	if b.now().After(exp) {
		delete(b.entries, jti)
		return false, nil
	}
	return true, nil
}

func (b *MemoryBlacklist) Close() error { return nil }

var (
	_ Blacklist = (*RedisBlacklist)(nil)
	_ Blacklist = (*MemoryBlacklist)(nil)
)
