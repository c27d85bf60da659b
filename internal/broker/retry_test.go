package broker

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvpdauth/internal/httputil"
	"mvpdauth/internal/models"
)

func TestWithLogoutRetry(t *testing.T) {
	tests := []struct {
		name       string
		results    []error
		wantPasses int
		wantClears int
		wantErr    error
	}{
		{"first pass succeeds", []error{nil}, 1, 0, nil},
		{"logout then success", []error{errPendingLogout, nil}, 2, 1, nil},
		{"logout twice", []error{errPendingLogout, errPendingLogout}, 2, 2, models.ErrPendingLogoutExhausted},
		{"other error is not retried", []error{errors.New("boom")}, 1, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passes, clears := 0, 0
			tok, err := withLogoutRetry(context.Background(), maxPasses,
				func(context.Context) error { clears++; return nil },
				func(context.Context) (string, error) {
					err := tt.results[passes]
					passes++
					if err != nil {
						return "", err
					}
					return "token", nil
				})
			assert.Equal(t, tt.wantPasses, passes)
			assert.Equal(t, tt.wantClears, clears)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.results[len(tt.results)-1] != nil:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, "token", tok)
			}
		})
	}
}

func TestWithLogoutRetry_ClearFailureStops(t *testing.T) {
	passes := 0
	_, err := withLogoutRetry(context.Background(), maxPasses,
		func(context.Context) error { return errors.New("disk full") },
		func(context.Context) (string, error) { passes++; return "", errPendingLogout })
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, passes)
}

func TestCheckSoftwareStatement(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sign := func(exp time.Time) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	assert.NoError(t, checkSoftwareStatement("opaque-statement", now))
	assert.NoError(t, checkSoftwareStatement(sign(now.Add(time.Hour)), now))

	var cfgErr *models.ConfigurationRequiredError
	assert.True(t, errors.As(checkSoftwareStatement(sign(now), now), &cfgErr))
	assert.True(t, errors.As(checkSoftwareStatement("", now), &cfgErr))
}

func TestSessionError(t *testing.T) {
	unauthorized := &httputil.StatusError{Code: http.StatusUnauthorized, URL: "https://sp/adobe-services/session"}

	var cfgErr *models.ConfigurationRequiredError
	assert.True(t, errors.As(sessionError(unauthorized, ""), &cfgErr))

	assert.Same(t, unauthorized, sessionError(unauthorized, "DTV"))

	forbidden := &httputil.StatusError{Code: http.StatusForbidden}
	assert.Same(t, forbidden, sessionError(forbidden, ""))
}
