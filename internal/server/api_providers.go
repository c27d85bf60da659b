package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mvpdauth/internal/mso"
)

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := mso.List(r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := mso.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		var unknown *mso.UnknownProviderError
		if errors.As(err, &unknown) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
