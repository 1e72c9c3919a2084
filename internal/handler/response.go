package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/httputil"
	"github.com/handypro/marketplace-server/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeError logs server-side failures before rendering the error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	if httputil.StatusFromCode(code) >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("code", string(code)).
			Str("path", r.URL.Path).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("request failed")
	}
	httputil.WriteError(w, err)
}

// pathID returns the named URL parameter if it is a canonical UUID.
func pathID(r *http.Request, name string) (string, error) {
	id := chi.URLParam(r, name)
	if !util.IsValidUUID(id) {
		return "", apperrors.InvalidInput(name, "must be a UUID")
	}
	return id, nil
}
