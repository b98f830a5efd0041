package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/logger"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestValidator() *TokenValidator {
	return NewTokenValidator(testSecret, "clinic-auth", time.Hour)
}

func TestTokenValidator_RoundTrip(t *testing.T) {
	tv := newTestValidator()

	token, err := tv.IssueToken(&types.UserClaims{UserID: "user-1", Username: "anna", Role: types.RoleRegistrar})
	require.NoError(t, err)

	claims, err := tv.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "anna", claims.Username)
	assert.Equal(t, types.RoleRegistrar, claims.Role)
}

func TestTokenValidator_Rejects(t *testing.T) {
	tv := newTestValidator()
	now := time.Now()

	sign := func(secret string, method jwt.SigningMethod, c *JWTClaims) string {
		tok, err := jwt.NewWithClaims(method, c).SignedString([]byte(secret))
		require.NoError(t, err)
		return tok
	}
	base := func() *JWTClaims {
		return &JWTClaims{
			UserID: "user-1",
			Role:   "patient",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(now),
				Issuer:    "clinic-auth",
			},
		}
	}

	expired := base()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))

	wrongIssuer := base()
	wrongIssuer.Issuer = "someone-else"

	unknownRole := base()
	unknownRole.Role = "janitor"

	noUser := base()
	noUser.UserID = ""

	tests := map[string]string{
		"garbage":      "invalid-token",
		"wrong secret": sign("wrong-secret", jwt.SigningMethodHS256, base()),
		"wrong alg":    sign(testSecret, jwt.SigningMethodHS512, base()),
		"expired":      sign(testSecret, jwt.SigningMethodHS256, expired),
		"wrong issuer": sign(testSecret, jwt.SigningMethodHS256, wrongIssuer),
		"unknown role": sign(testSecret, jwt.SigningMethodHS256, unknownRole),
		"no user id":   sign(testSecret, jwt.SigningMethodHS256, noUser),
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tv.ValidateJWT(token)
			assert.Error(t, err)
		})
	}
}

func TestMiddleware_Authenticate(t *testing.T) {
	tv := newTestValidator()
	mw := NewMiddleware(tv, logger.NewWithOutput("error", io.Discard))

	var seen *types.UserClaims
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/appointments/my", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body types.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, types.ErrCodeUnauthorized, body.Error)
		assert.Equal(t, http.StatusUnauthorized, body.Status)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/appointments/my", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := tv.IssueToken(&types.UserClaims{UserID: "user-7", Role: types.RolePatient})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/appointments/my", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "user-7", seen.UserID)
	})
}

func TestMiddleware_RequireRoles(t *testing.T) {
	mw := NewMiddleware(newTestValidator(), logger.NewWithOutput("error", io.Discard))
	handler := mw.RequireRoles(types.RoleRegistrar, types.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		claims *types.UserClaims
		want   int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"patient", &types.UserClaims{UserID: "u", Role: types.RolePatient}, http.StatusForbidden},
		{"registrar", &types.UserClaims{UserID: "u", Role: types.RoleRegistrar}, http.StatusOK},
		{"admin", &types.UserClaims{UserID: "u", Role: types.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/registrar/appointments", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
