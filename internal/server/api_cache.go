package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	requestor := chi.URLParam(r, "requestor")
	if !isValidPathSegment(requestor) {
		writeError(w, http.StatusBadRequest, "invalid requestor")
		return
	}
	if err := s.cache.Reset(r.Context(), requestor); err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
