package broker

import (
	"context"
	"errors"
	"log/slog"

	"mvpdauth/internal/models"
)

// maxPasses bounds how often an exchange restarts after a pending logout.
const maxPasses = 2

// errPendingLogout is returned by a pass when the broker reports that the
// cached session was logged out.
var errPendingLogout = errors.New("broker reported pending logout")

// withLogoutRetry runs pass until it returns something other than
// errPendingLogout. Each pending logout clears the cache first. Running out
// of passes is models.ErrPendingLogoutExhausted.
func withLogoutRetry(ctx context.Context, passes int, clearCache func(context.Context) error, pass func(context.Context) (string, error)) (string, error) {
	for i := 0; i < passes; i++ {
		tok, err := pass(ctx)
		if !errors.Is(err, errPendingLogout) {
			return tok, err
		}
		slog.Info("broker reported pending logout, clearing cached tokens", "pass", i+1)
		if err := clearCache(ctx); err != nil {
			return "", err
		}
	}
	return "", models.ErrPendingLogoutExhausted
}
