package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/runstash/internal/trigger"
)

// CreateTimer implements trigger.Host. Timers are created in ScopeProject.
func (s *Store) CreateTimer(ctx context.Context, target string, after time.Duration) (trigger.Timer, error) {
	return s.insertTimer(ctx, target, trigger.ScopeProject, "", after)
}

// CreateContextTimer creates a timer bound to the store's context id.
func (s *Store) CreateContextTimer(ctx context.Context, target string, after time.Duration) (trigger.Timer, error) {
	return s.insertTimer(ctx, target, trigger.ScopeContext, s.contextID, after)
}

func (s *Store) insertTimer(ctx context.Context, target string, scope trigger.Scope, contextID string, after time.Duration) (trigger.Timer, error) {
	// Stored with millisecond precision.
	now := s.now().UTC().Truncate(time.Millisecond)
	t := trigger.Timer{
		ID:        uuid.NewString(),
		Target:    target,
		Scope:     scope,
		FireAt:    now.Add(after).Truncate(time.Millisecond),
		CreatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timers (id, scope, context_id, target, fire_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Scope), contextID, t.Target,
		t.FireAt.UnixMilli(), t.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return trigger.Timer{}, fmt.Errorf("sqlite: create timer: %w", err)
	}
	return t, nil
}

// ListTimers implements trigger.Host. Context-scoped listing only sees the
// timers of the store's context id.
func (s *Store) ListTimers(ctx context.Context, scope trigger.Scope) ([]trigger.Timer, error) {
	query := "SELECT id, target, fire_at, created_at FROM timers WHERE scope = ?"
	args := []any{string(scope)}
	if scope == trigger.ScopeContext {
		query += " AND context_id = ?"
		args = append(args, s.contextID)
	}
	query += " ORDER BY fire_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list timers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var timers []trigger.Timer
	for rows.Next() {
		var (
			t                 trigger.Timer
			fireAt, createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.Target, &fireAt, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan timer: %w", err)
		}
		t.Scope = scope
		t.FireAt = time.UnixMilli(fireAt).UTC()
		t.CreatedAt = time.UnixMilli(createdAt).UTC()
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

// DeleteTimer implements trigger.Host.
func (s *Store) DeleteTimer(ctx context.Context, t trigger.Timer) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM timers WHERE id = ?", t.ID)
	if err != nil {
		return fmt.Errorf("sqlite: delete timer %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete timer %s: %w", t.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", trigger.ErrNotFound, t.ID)
	}
	return nil
}
