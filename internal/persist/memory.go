package persist

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

type memoryBackend struct {
	c *gocache.Cache
}

// NewMemory keeps values for the life of the process.
func NewMemory() Backend {
	return &memoryBackend{c: gocache.New(gocache.NoExpiration, 0)}
}

func memoryKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (m *memoryBackend) Load(_ context.Context, namespace, key string) (string, bool, error) {
	v, ok := m.c.Get(memoryKey(namespace, key))
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m *memoryBackend) Store(_ context.Context, namespace, key, value string) error {
	m.c.Set(memoryKey(namespace, key), value, gocache.NoExpiration)
	return nil
}

func (m *memoryBackend) Delete(_ context.Context, namespace, key string) error {
	m.c.Delete(memoryKey(namespace, key))
	return nil
}

func (m *memoryBackend) Close() error { return nil }
