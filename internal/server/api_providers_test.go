package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvpdauth/internal/models"
)

func TestListProviders_Search(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/providers?search=verizon", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got []models.ProviderProfile
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.NotEmpty(t, got)
	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, "Verizon")
}

func TestGetProvider(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/providers/DTV", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var p models.ProviderProfile
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	assert.Equal(t, "DTV", p.ID)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/providers/NoSuchMSO", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
