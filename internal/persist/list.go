package persist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrListUnsupported is returned by List for backends that cannot enumerate keys.
var ErrListUnsupported = errors.New("cache driver does not support listing")

// Entry describes one stored key. UpdatedAt is zero when the backend does not
// track write times.
type Entry struct {
	Key       string
	UpdatedAt time.Time
}

// Lister is implemented by backends that can enumerate a namespace.
type Lister interface {
	List(ctx context.Context, namespace, prefix string) ([]Entry, error)
}

// List returns the keys in namespace starting with prefix.
func List(ctx context.Context, b Backend, namespace, prefix string) ([]Entry, error) {
	if s, ok := b.(*sealed); ok {
		b = s.Backend
	}
	l, ok := b.(Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	return l.List(ctx, namespace, prefix)
}

func (b *sqliteBackend) List(ctx context.Context, namespace, prefix string) ([]Entry, error) {
	rows, err := b.s.ListCacheEntries(ctx, namespace, prefix)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{Key: r.Key, UpdatedAt: r.UpdatedAt})
	}
	return entries, nil
}

func (b *fileBackend) List(_ context.Context, namespace, prefix string) ([]Entry, error) {
	infos, err := afero.ReadDir(b.fs, filepath.Join(b.dir, url.PathEscape(namespace)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache dir: %w", err)
	}
	var entries []Entry
	for _, fi := range infos {
		name, ok := strings.CutSuffix(fi.Name(), ".json")
		if fi.IsDir() || !ok {
			continue
		}
		key, err := url.PathUnescape(name)
		if err != nil || !strings.HasPrefix(key, prefix) {
			continue
		}
		entries = append(entries, Entry{Key: key, UpdatedAt: fi.ModTime().UTC()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UpdatedAt.After(entries[j].UpdatedAt) })
	return entries, nil
}

func (m *memoryBackend) List(_ context.Context, namespace, prefix string) ([]Entry, error) {
	var entries []Entry
	for k := range m.c.Items() {
		ns, key, ok := strings.Cut(k, "\x00")
		if !ok || ns != namespace || !strings.HasPrefix(key, prefix) {
			continue
		}
		entries = append(entries, Entry{Key: key})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}
