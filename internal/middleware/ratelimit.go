package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/handypro/marketplace-server/internal/audit"
	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/httputil"
	"github.com/handypro/marketplace-server/internal/service"
)

type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) service.RateLimitDecision
}

// KeyFunc derives the rate limit bucket of a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

func ByUser(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return "user:" + id
	}
	return ""
}

// ByIP keys on the client address. Run after chi's RealIP so proxies are honoured.
func ByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

type RateLimitMiddleware struct {
	limiter Limiter
	limit   int
	window  time.Duration
	prefix  string
	key     KeyFunc
	now     func() time.Time
}

func NewRateLimitMiddleware(limiter Limiter, prefix string, limit int, window time.Duration, key KeyFunc) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		prefix:  prefix,
		key:     key,
		now:     time.Now,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.key(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		d := m.limiter.Check(r.Context(), m.prefix+":"+key, m.limit, m.window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				UserID:  GetUserID(r.Context()),
				Details: map[string]interface{}{"bucket": m.prefix},
			})
			w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter(m.now())))
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
