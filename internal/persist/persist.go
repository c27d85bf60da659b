// Package persist selects where cached token records live between runs.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"mvpdauth/internal/crypto"
	"mvpdauth/internal/store"
)

// Backend is a namespaced string key-value store.
type Backend interface {
	// Load returns ok=false, nil when nothing is stored under key.
	Load(ctx context.Context, namespace, key string) (value string, ok bool, err error)
	Store(ctx context.Context, namespace, key, value string) error
	Delete(ctx context.Context, namespace, key string) error
	Close() error
}

const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Drivers lists the accepted Options.Driver values.
var Drivers = []string{DriverSQLite, DriverFile, DriverMemory, DriverRedis}

type Options struct {
	Driver    string
	Path      string // sqlite database file
	Dir       string // file backend root
	RedisAddr string
	RedisDB   int
	// Key is a base64 AES-256 key; Passphrase derives one instead.
	Key        string
	Passphrase string
}

// Open builds the backend named by opts.Driver. Values are sealed at rest
// when a key or passphrase is configured.
func Open(opts Options) (Backend, error) {
	enc, err := encryptorFor(opts)
	if err != nil {
		return nil, err
	}

	var b Backend
	switch opts.Driver {
	case DriverSQLite, "":
		path := opts.Path
		if path == "" {
			path = "mvpdauth.db"
		}
		var storeOpts []store.Option
		if enc != nil {
			storeOpts = append(storeOpts, store.WithEncryptor(enc))
		}
		s, err := store.New(path, storeOpts...)
		if err != nil {
			return nil, fmt.Errorf("opening cache database: %w", err)
		}
		if err := s.MigrateEmbedded(); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrating cache database: %w", err)
		}
		b = NewSQLite(s)
		slog.Debug("token cache opened", "driver", DriverSQLite, "path", path, "sealed", IsSealed(b))
		return b, nil
	case DriverFile:
		dir := opts.Dir
		if dir == "" {
			dir = filepath.Join(".cache", "mvpdauth")
		}
		b = NewFile(afero.NewOsFs(), dir)
	case DriverMemory:
		b = NewMemory()
	case DriverRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis cache driver requires an address")
		}
		b = NewRedis(opts.RedisAddr, opts.RedisDB)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}

	if enc != nil {
		b = &sealed{Backend: b, enc: enc}
	}
	slog.Debug("token cache opened", "driver", opts.Driver, "sealed", IsSealed(b))
	return b, nil
}

// IsSealed reports whether b encrypts values before they reach storage.
func IsSealed(b Backend) bool {
	switch v := b.(type) {
	case *sealed:
		return true
	case *sqliteBackend:
		return v.s.HasEncryptor()
	}
	return false
}

func encryptorFor(opts Options) (*crypto.Encryptor, error) {
	switch {
	case opts.Key != "":
		enc, err := crypto.NewEncryptor(opts.Key)
		if err != nil {
			return nil, fmt.Errorf("cache key: %w", err)
		}
		return enc, nil
	case opts.Passphrase != "":
		return crypto.NewEncryptorFromPassphrase(opts.Passphrase, "mvpdauth")
	}
	return nil, nil
}
