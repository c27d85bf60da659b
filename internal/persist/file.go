package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"

	"github.com/spf13/afero"
)

type fileBackend struct {
	fs  afero.Fs
	dir string
}

// NewFile stores each value as <dir>/<namespace>/<key>.json.
func NewFile(fsys afero.Fs, dir string) Backend {
	return &fileBackend{fs: fsys, dir: dir}
}

func (b *fileBackend) path(namespace, key string) string {
	return filepath.Join(b.dir, url.PathEscape(namespace), url.PathEscape(key)+".json")
}

func (b *fileBackend) Load(_ context.Context, namespace, key string) (string, bool, error) {
	data, err := afero.ReadFile(b.fs, b.path(namespace, key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cache file: %w", err)
	}
	return string(data), true, nil
}

func (b *fileBackend) Store(_ context.Context, namespace, key, value string) error {
	p := b.path(namespace, key)
	if err := b.fs.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, []byte(value), 0600); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := b.fs.Rename(tmp, p); err != nil {
		b.fs.Remove(tmp)
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

func (b *fileBackend) Delete(_ context.Context, namespace, key string) error {
	err := b.fs.Remove(b.path(namespace, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

func (b *fileBackend) Close() error { return nil }
