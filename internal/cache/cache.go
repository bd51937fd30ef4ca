// Package cache stores resolved profiles between runs so that repeated batches do
// not spend lookup credits on candidates that were already retrieved.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("key not found in cache")
	ErrInvalidKey = errors.New("invalid cache key")
)

type Cache interface {
	// Set stores value encoded as JSON. A zero ttl uses the cache default.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get decodes the stored JSON into value or returns ErrNotFound.
	Get(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Options struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	DefaultTTL time.Duration `mapstructure:"ttl"`
	Prefix     string        `mapstructure:"prefix"`
}

func DefaultOptions() Options {
	return Options{
		Addr:       "localhost:6379",
		DefaultTTL: 7 * 24 * time.Hour,
		Prefix:     "adherence:",
	}
}

// Nop is a Cache that never stores anything.
type Nop struct{}

func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }

func (Nop) Get(context.Context, string, any) error { return ErrNotFound }

func (Nop) Delete(context.Context, string) error { return nil }

func (Nop) Close() error { return nil }
