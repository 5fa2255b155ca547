package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/flemzord/runstash/internal/trigger"
)

// CreateTimer implements trigger.Host. Timers are created in ScopeProject.
func (s *Store) CreateTimer(ctx context.Context, target string, after time.Duration) (trigger.Timer, error) {
	return s.addTimer(ctx, target, trigger.ScopeProject, after)
}

// CreateContextTimer creates a timer bound to the store's context id.
func (s *Store) CreateContextTimer(ctx context.Context, target string, after time.Duration) (trigger.Timer, error) {
	return s.addTimer(ctx, target, trigger.ScopeContext, after)
}

func (s *Store) indexKey(scope trigger.Scope) string {
	if scope == trigger.ScopeContext {
		return s.contextTimersKey()
	}
	return s.projectTimersKey()
}

func (s *Store) addTimer(ctx context.Context, target string, scope trigger.Scope, after time.Duration) (trigger.Timer, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	t := trigger.Timer{
		ID:        uuid.NewString(),
		Target:    target,
		Scope:     scope,
		FireAt:    now.Add(after).Truncate(time.Millisecond),
		CreatedAt: now,
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.timerKey(t.ID), timerToMap(t))
	pipe.ZAdd(ctx, s.indexKey(scope), goredis.Z{Score: float64(t.FireAt.UnixMilli()), Member: t.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return trigger.Timer{}, fmt.Errorf("redis: create timer: %w", err)
	}
	return t, nil
}

// ListTimers implements trigger.Host, ordered by fire time.
func (s *Store) ListTimers(ctx context.Context, scope trigger.Scope) ([]trigger.Timer, error) {
	index := s.indexKey(scope)
	ids, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list timers: %w", err)
	}

	timers := make([]trigger.Timer, 0, len(ids))
	for _, id := range ids {
		vals, err := s.client.HGetAll(ctx, s.timerKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: get timer %s: %w", id, err)
		}
		if len(vals) == 0 {
			// Index entry without a body; drop it.
			_ = s.client.ZRem(ctx, index, id).Err()
			continue
		}
		t, err := timerFromMap(id, scope, vals)
		if err != nil {
			// A malformed timer can never fire; drop it so the rest of the
			// scope stays listable and clearable.
			s.logger.Warn("redis: dropping malformed timer", "id", id, "error", err)
			s.dropTimer(ctx, index, id)
			continue
		}
		timers = append(timers, t)
	}
	return timers, nil
}

func (s *Store) dropTimer(ctx context.Context, index, id string) {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.timerKey(id))
	pipe.ZRem(ctx, index, id)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("redis: drop timer failed", "id", id, "error", err)
	}
}

// DeleteTimer implements trigger.Host.
func (s *Store) DeleteTimer(ctx context.Context, t trigger.Timer) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.timerKey(t.ID))
	pipe.ZRem(ctx, s.indexKey(t.Scope), t.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete timer %s: %w", t.ID, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", trigger.ErrNotFound, t.ID)
	}
	return nil
}

func timerToMap(t trigger.Timer) map[string]any {
	return map[string]any{
		"target":     t.Target,
		"scope":      string(t.Scope),
		"fire_at":    t.FireAt.UnixMilli(),
		"created_at": t.CreatedAt.UnixMilli(),
	}
}

func timerFromMap(id string, scope trigger.Scope, m map[string]string) (trigger.Timer, error) {
	fireAt, err := strconv.ParseInt(m["fire_at"], 10, 64)
	if err != nil {
		return trigger.Timer{}, fmt.Errorf("redis: timer %s: fire_at: %w", id, err)
	}
	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return trigger.Timer{}, fmt.Errorf("redis: timer %s: created_at: %w", id, err)
	}
	target := m["target"]
	if target == "" {
		return trigger.Timer{}, errors.New("redis: timer " + id + ": missing target")
	}
	return trigger.Timer{
		ID:        id,
		Target:    target,
		Scope:     scope,
		FireAt:    time.UnixMilli(fireAt).UTC(),
		CreatedAt: time.UnixMilli(createdAt).UTC(),
	}, nil
}
