package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"mvpdauth/internal/httputil"
	"mvpdauth/internal/models"
)

type authorizeRequest struct {
	TargetURL         string `json:"target_url"`
	Resource          string `json:"resource"`
	RequestorID       string `json:"requestor_id"`
	SoftwareStatement string `json:"software_statement"`
}

func (in authorizeRequest) validate() error {
	var missing []string
	if in.TargetURL == "" {
		missing = append(missing, "target_url")
	}
	if in.Resource == "" {
		missing = append(missing, "resource")
	}
	if in.RequestorID == "" {
		missing = append(missing, "requestor_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

type authorizeResponse struct {
	MediaToken string `json:"media_token"`
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var in authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tok, err := s.exchange.Authorize(r.Context(), in.TargetURL, in.Resource, in.RequestorID, in.SoftwareStatement)
	if err != nil {
		status, msg := exchangeErrorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Warn("token exchange failed", "requestor", in.RequestorID, "error", err)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, authorizeResponse{MediaToken: tok})
}

func exchangeErrorStatus(err error) (int, string) {
	var (
		cfgErr    *models.ConfigurationRequiredError
		authErr   *models.AuthenticationError
		mismatch  *models.HostnameMismatchError
		parseErr  *models.ParseError
		statusErr *httputil.StatusError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusPreconditionFailed, cfgErr.Error()
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, authErr.Error()
	case errors.As(err, &mismatch):
		return http.StatusBadGateway, mismatch.Error()
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, parseErr.Error()
	case errors.As(err, &statusErr):
		return http.StatusBadGateway, fmt.Sprintf("upstream returned status %d", statusErr.Code)
	default:
		return http.StatusInternalServerError, "internal"
	}
}
