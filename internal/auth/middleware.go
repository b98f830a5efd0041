package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/logger"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/types"
)

type contextKey string

const claimsKey contextKey = "user_claims"

// Middleware authenticates bearer tokens and enforces role checks
type Middleware struct {
	validator *TokenValidator
	logger    *logger.Logger
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(validator *TokenValidator, log *logger.Logger) *Middleware {
	return &Middleware{validator: validator, logger: log}
}

// Authenticate validates the Authorization header and stores the claims in
// the request context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, types.NewAuthenticationError("missing authorization header", nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, types.NewAuthenticationError("invalid authorization header format", nil))
			return
		}

		claims, err := m.validator.ValidateJWT(strings.TrimSpace(parts[1]))
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("Token validation failed")
			writeError(w, types.NewAuthenticationError("invalid token", err))
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, logger.UserIDKey, claims.UserID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles rejects authenticated callers whose role is not listed
func (m *Middleware) RequireRoles(roles ...types.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, types.NewAuthenticationError("authentication required", nil))
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			m.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
				"role": claims.Role,
				"path": r.URL.Path,
			}).Warn("Role not permitted for endpoint")
			writeError(w, types.NewForbiddenError("role not permitted for this operation"))
		})
	}
}

// ClaimsFromContext returns the claims stored by Authenticate
func ClaimsFromContext(ctx context.Context) (*types.UserClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*types.UserClaims)
	return claims, ok && claims != nil
}

// WithClaims stores claims in ctx
func WithClaims(ctx context.Context, claims *types.UserClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func writeError(w http.ResponseWriter, err error) {
	resp := types.NewErrorResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp)
}
