package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Set implements checkpoint.Backend.
func (s *Store) Set(ctx context.Context, identity, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (identity, key, value) VALUES (?, ?, ?)
		ON CONFLICT (identity, key) DO UPDATE
		SET value = excluded.value,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
		identity, key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlite: set %s: %w", key, err)
	}
	return nil
}

// Get implements checkpoint.Backend.
func (s *Store) Get(ctx context.Context, identity, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM checkpoints WHERE identity = ? AND key = ?",
		identity, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: get %s: %w", key, err)
	}
	return value, true, nil
}

// Keys implements checkpoint.Backend.
func (s *Store) Keys(ctx context.Context, identity string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM checkpoints WHERE identity = ? ORDER BY key",
		identity,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlite: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteAll implements checkpoint.Backend.
func (s *Store) DeleteAll(ctx context.Context, identity string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE identity = ?", identity); err != nil {
		return fmt.Errorf("sqlite: delete all: %w", err)
	}
	return nil
}

// CompareAndSwap implements checkpoint.Backend. A single conditional
// statement does the compare and the write, so it is atomic across
// processes sharing the file.
func (s *Store) CompareAndSwap(ctx context.Context, identity, key, oldValue, newValue string, oldPresent bool) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if oldPresent {
		res, err = s.db.ExecContext(ctx, `
			UPDATE checkpoints
			SET value = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
			WHERE identity = ? AND key = ? AND value = ?`,
			newValue, identity, key, oldValue,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO checkpoints (identity, key, value) VALUES (?, ?, ?)",
			identity, key, newValue,
		)
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: compare-and-swap %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: compare-and-swap %s: %w", key, err)
	}
	return n == 1, nil
}
