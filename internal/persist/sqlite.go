package persist

import (
	"context"

	"mvpdauth/internal/store"
)

type sqliteBackend struct {
	s *store.Store
}

// NewSQLite adapts a migrated store. Sealing is handled by the store itself.
func NewSQLite(s *store.Store) Backend {
	return &sqliteBackend{s: s}
}

func (b *sqliteBackend) Load(ctx context.Context, namespace, key string) (string, bool, error) {
	return b.s.LoadCache(ctx, namespace, key)
}

func (b *sqliteBackend) Store(ctx context.Context, namespace, key, value string) error {
	return b.s.StoreCache(ctx, namespace, key, value)
}

func (b *sqliteBackend) Delete(ctx context.Context, namespace, key string) error {
	return b.s.DeleteCache(ctx, namespace, key)
}

func (b *sqliteBackend) Close() error {
	return b.s.Close()
}

func (b *sqliteBackend) Ping() error {
	return b.s.Ping()
}
