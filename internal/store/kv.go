package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/p-blackswan/tabpile/pkg/kvstore"
)

// KV exposes the kv table as a kvstore.Store.
func (s *Store) KV() kvstore.Store {
	return &kvTable{s: s}
}

type kvTable struct {
	s *Store
}

func (k *kvTable) Get(ctx context.Context, key string) ([]byte, error) {
	k.s.mu.RLock()
	defer k.s.mu.RUnlock()

	var value []byte
	err := k.s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

func (k *kvTable) Set(ctx context.Context, key string, value []byte) error {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	_, err := k.s.db.ExecContext(ctx, `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

func (k *kvTable) Remove(ctx context.Context, key string) error {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	if _, err := k.s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

func (k *kvTable) Keys(ctx context.Context) ([]string, error) {
	k.s.mu.RLock()
	defer k.s.mu.RUnlock()

	rows, err := k.s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
