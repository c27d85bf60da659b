package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mvpdauth/internal/crypto"
)

// CacheEntry is one stored value with its last write time.
type CacheEntry struct {
	Namespace string
	Key       string
	UpdatedAt time.Time
}

// LoadCache returns the value stored under namespace/key. ok is false when
// nothing is stored.
func (s *Store) LoadCache(ctx context.Context, namespace, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM mvpd_cache WHERE namespace = ? AND cache_key = ?`,
		namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load cache %s/%s: %w", namespace, key, err)
	}

	if !crypto.IsSealed(value) {
		return value, true, nil
	}
	if s.encryptor == nil {
		slog.Warn("cached value is encrypted but no cache key is configured", "namespace", namespace, "key", key)
		return "", false, nil
	}
	plain, err := s.encryptor.Decrypt(value)
	if err != nil {
		slog.Warn("discarding cached value that failed to decrypt", "namespace", namespace, "key", key, "error", err)
		return "", false, nil
	}
	return plain, true, nil
}

// StoreCache overwrites the value under namespace/key, sealing it when the
// store has an encryptor.
func (s *Store) StoreCache(ctx context.Context, namespace, key, value string) error {
	if s.encryptor != nil {
		sealed, err := s.encryptor.Encrypt(value)
		if err != nil {
			return fmt.Errorf("encrypt cache value: %w", err)
		}
		value = sealed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mvpd_cache (namespace, cache_key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, cache_key) DO UPDATE SET
			value=excluded.value, updated_at=excluded.updated_at`,
		namespace, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store cache %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *Store) DeleteCache(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM mvpd_cache WHERE namespace = ? AND cache_key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("delete cache %s/%s: %w", namespace, key, err)
	}
	return nil
}

// ListCacheEntries returns the keys in namespace starting with prefix, most
// recently written first.
func (s *Store) ListCacheEntries(ctx context.Context, namespace, prefix string) ([]CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cache_key, CAST(updated_at AS TEXT) FROM mvpd_cache
		WHERE namespace = ? AND cache_key LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC, cache_key`,
		namespace, keyPrefixPattern(prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("list cache %s: %w", namespace, err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var updated string
		if err := rows.Scan(&e.Key, &updated); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.Namespace = namespace
		if e.UpdatedAt, err = parseUpdatedAt(updated); err != nil {
			slog.Warn("unparseable cache timestamp", "key", e.Key, "error", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
