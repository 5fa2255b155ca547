package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// casScript swaps a hash field only when it still holds the expected value,
// or, with ARGV[4] == "0", only when it is absent.
var casScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if ARGV[4] == '1' then
	if cur ~= ARGV[2] then
		return 0
	end
elseif cur then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
return 1
`)

// Set implements checkpoint.Backend.
func (s *Store) Set(ctx context.Context, identity, key, value string) error {
	if err := s.client.HSet(ctx, s.checkpointKey(identity), key, value).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Get implements checkpoint.Backend.
func (s *Store) Get(ctx context.Context, identity, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.checkpointKey(identity), key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return v, true, nil
}

// Keys implements checkpoint.Backend.
func (s *Store) Keys(ctx context.Context, identity string) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.checkpointKey(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list keys: %w", err)
	}
	return keys, nil
}

// DeleteAll implements checkpoint.Backend.
func (s *Store) DeleteAll(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, s.checkpointKey(identity)).Err(); err != nil {
		return fmt.Errorf("redis: delete all: %w", err)
	}
	return nil
}

// CompareAndSwap implements checkpoint.Backend with a Lua script, which
// Redis runs atomically.
func (s *Store) CompareAndSwap(ctx context.Context, identity, key, oldValue, newValue string, oldPresent bool) (bool, error) {
	flag := "0"
	if oldPresent {
		flag = "1"
	}
	n, err := casScript.Run(ctx, s.client, []string{s.checkpointKey(identity)},
		key, oldValue, newValue, flag,
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: compare-and-swap %s: %w", key, err)
	}
	return n == 1, nil
}
