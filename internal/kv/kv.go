// Package kv is the TTL key/value store behind the token registry and the
// import status board. Badger is the embedded default; Redis is used when
// a REDIS_URL is configured.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zulandar/testyard/internal/config"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is a string-keyed byte store whose entries expire.
type Store interface {
	// Set writes value under key; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Expire resets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Keys lists live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// GC reclaims space held by expired entries where the backend needs it.
	GC() error
	Close() error
}

// Open builds the Store selected by cfg.
func Open(cfg config.KVConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "badger", "":
		return OpenBadger(BadgerOptions{Path: cfg.Path, InMemory: cfg.InMemory, Logger: logger})
	case "redis":
		return OpenRedis(fmt.Sprintf("%s:%d", cfg.RedisURL, cfg.RedisPort))
	default:
		return nil, fmt.Errorf("kv: unsupported backend %q", cfg.Backend)
	}
}
