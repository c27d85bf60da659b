package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvpdauth/internal/httputil"
	"mvpdauth/internal/models"
)

func postAuthorize(srv http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/authorize", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

const validAuthorize = `{"target_url":"https://www.example.com/watch/1","resource":"example","requestor_id":"example","software_statement":"stmt"}`

func TestAuthorize_ReturnsMediaToken(t *testing.T) {
	srv, x, _ := newTestServer(t)

	w := postAuthorize(srv, validAuthorize)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp authorizeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "signed-media-token", resp.MediaToken)
	require.Len(t, x.calls, 1)
	assert.Equal(t, authorizeCall{"https://www.example.com/watch/1", "example", "example", "stmt"}, x.calls[0])
}

func TestAuthorize_BadRequests(t *testing.T) {
	srv, x, _ := newTestServer(t)

	for name, body := range map[string]string{
		"invalid json":      `{`,
		"missing requestor": `{"target_url":"https://x","resource":"r"}`,
		"empty":             `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := postAuthorize(srv, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, x.calls)
}

func TestAuthorize_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"configuration", &models.ConfigurationRequiredError{}, http.StatusPreconditionFailed},
		{"authentication", &models.AuthenticationError{Message: "bad password"}, http.StatusUnauthorized},
		{"hostname", &models.HostnameMismatchError{Expected: "a", Got: "b"}, http.StatusBadGateway},
		{"parse", fmt.Errorf("login: %w", &models.ParseError{Element: "form"}), http.StatusBadGateway},
		{"upstream", &httputil.StatusError{Code: 503, URL: "https://sp"}, http.StatusBadGateway},
		{"pending logout", models.ErrPendingLogoutExhausted, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, x, _ := newTestServer(t)
			x.err = tt.err

			w := postAuthorize(srv, validAuthorize)
			assert.Equal(t, tt.want, w.Code)
			var resp map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestAuthorize_AuthenticationMessagePassedThrough(t *testing.T) {
	srv, x, _ := newTestServer(t)
	x.err = &models.AuthenticationError{Message: "Failed to login, incorrect User ID or Password."}

	w := postAuthorize(srv, validAuthorize)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Failed to login, incorrect User ID or Password.", resp["error"])
}

func TestAuthorize_RateLimited(t *testing.T) {
	srv, x, _ := newTestServer(t, WithAuthorizeLimit(2, time.Minute))

	assert.Equal(t, http.StatusOK, postAuthorize(srv, validAuthorize).Code)
	assert.Equal(t, http.StatusOK, postAuthorize(srv, validAuthorize).Code)
	w := postAuthorize(srv, validAuthorize)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Len(t, x.calls, 2)
}
