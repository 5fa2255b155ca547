// Package redis implements checkpoint.Backend and trigger.Host on Redis, for
// jobs whose invocations do not share a filesystem. Each identity's state is
// one Hash; timers are Hashes indexed by per-scope Sorted Sets.
//
// Usage:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client, redisstore.WithPrefix("runstash:"))
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flemzord/runstash/internal/checkpoint"
	"github.com/flemzord/runstash/internal/trigger"
)

// Compile-time interface checks.
var (
	_ checkpoint.Backend = (*Store)(nil)
	_ trigger.Host       = (*Store)(nil)
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Validate reports configuration problems.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis: addr is required")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis: db must be non-negative, got %d", c.DB)
	}
	return nil
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPrefix sets the key prefix. Defaults to "runstash:".
func WithPrefix(p string) Option {
	return func(s *Store) {
		if p != "" {
			s.prefix = p
		}
	}
}

// WithContextID sets the id ScopeContext timers are bound to.
func WithContextID(id string) Option {
	return func(s *Store) { s.contextID = id }
}

// WithClock overrides time.Now for timer fire times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a Redis-backed checkpoint backend and timer host.
type Store struct {
	client    goredis.Cmdable
	closer    func() error
	prefix    string
	contextID string
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Redis-backed store. The caller owns the client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultPrefix,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open creates a client from cfg and a store that owns it; Close releases
// the client.
func Open(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s := New(client, append([]Option{WithPrefix(cfg.Prefix)}, opts...)...)
	s.closer = client.Close
	return s, nil
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the client when the store was built by Open.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
