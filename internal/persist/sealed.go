package persist

import (
	"context"
	"fmt"
	"log/slog"

	"mvpdauth/internal/crypto"
)

// sealed encrypts values on the way into a backend that has no encryption
// of its own. Plaintext values already present are returned as-is.
type sealed struct {
	Backend
	enc *crypto.Encryptor
}

func (s *sealed) Load(ctx context.Context, namespace, key string) (string, bool, error) {
	v, ok, err := s.Backend.Load(ctx, namespace, key)
	if err != nil || !ok || !crypto.IsSealed(v) {
		return v, ok, err
	}
	plain, err := s.enc.Decrypt(v)
	if err != nil {
		slog.Warn("discarding cached value that failed to decrypt", "namespace", namespace, "key", key, "error", err)
		return "", false, nil
	}
	return plain, true, nil
}

func (s *sealed) Store(ctx context.Context, namespace, key, value string) error {
	v, err := s.enc.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt cache value: %w", err)
	}
	return s.Backend.Store(ctx, namespace, key, v)
}
