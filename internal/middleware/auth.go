package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/handypro/marketplace-server/internal/audit"
	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/httputil"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/util"
)

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

// GetUserID returns the authenticated user's id, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	if user := GetUser(ctx); user != nil {
		return user.ID
	}
	return ""
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// AccessClaims are the identity provider's access token claims.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies HS256 access tokens issued by the identity provider.
type AuthMiddleware struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthMiddleware(secret, audience string) *AuthMiddleware {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &AuthMiddleware{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

func (m *AuthMiddleware) Authenticate(tokenString string) (*model.User, error) {
	var claims AccessClaims
	_, err := m.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	if !util.IsValidUUID(claims.Subject) {
		return nil, errors.New("token subject is not a user id")
	}
	return &model.User{ID: claims.Subject, Email: claims.Email}, nil
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		user, err := m.Authenticate(token)
		if err != nil {
			log.Debug().Err(err).Msg("auth middleware: token rejected")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token expired"
			}
			httputil.WriteError(w, apperrors.InvalidToken(msg))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// extractToken prefers the Authorization header; EventSource clients cannot set
// headers, so the event stream may pass ?access_token=.
func extractToken(r *http.Request) string {
	if token := util.BearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return r.URL.Query().Get("access_token")
}
