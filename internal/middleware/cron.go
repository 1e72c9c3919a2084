package middleware

import (
	"net/http"

	"github.com/handypro/marketplace-server/internal/audit"
	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/httputil"
	"github.com/handypro/marketplace-server/internal/util"
)

// CronAuthMiddleware guards internal endpoints with a bearer secret checked against a bcrypt hash.
type CronAuthMiddleware struct {
	secretHash string
}

func NewCronAuthMiddleware(secretHash string) *CronAuthMiddleware {
	return &CronAuthMiddleware{secretHash: secretHash}
}

func (m *CronAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secretHash == "" {
			httputil.WriteError(w, apperrors.ServerMisconfigured("cron secret is not configured"))
			return
		}

		if !util.CheckSecretHash(util.BearerToken(r.Header.Get("Authorization")), m.secretHash) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventCronAuthFailure,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			httputil.WriteError(w, apperrors.Unauthorized("Invalid cron secret"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
