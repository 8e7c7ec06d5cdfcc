package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/ai-saas-backend/internal/http/middleware"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/response"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
)

// decodeJSON reads a single JSON object. An empty body decodes to the zero
// value so the service layer reports missing fields uniformly.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func badJSON(w http.ResponseWriter, r *http.Request) {
	response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
}

// internalError logs the detail and returns the generic 500.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.ErrorContext(r.Context(), msg, "error", err, "path", r.URL.Path)
	observability.CaptureError(r, err)
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "Server error", nil)
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", msg, nil)
}

// currentUserID reads the user attached by the session middleware.
func currentUserID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "Not authorized, no token provided")
		return 0, false
	}
	return u.ID, true
}
