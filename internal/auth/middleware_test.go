package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims Claims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func protected(m *JWTMiddleware) http.Handler {
	return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := ClaimsFromContext(r.Context())
		w.Write([]byte(c.Subject))
	}))
}

func TestAuthenticate(t *testing.T) {
	m := NewJWTMiddleware("s3cret")
	valid := sign(t, "s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "clinic-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}, jwt.SigningMethodHS256)
	expired := sign(t, "s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "clinic-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}, jwt.SigningMethodHS256)
	wrongKey := sign(t, "other", Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}, jwt.SigningMethodHS256)
	noExpiry := sign(t, "s3cret", Claims{}, jwt.SigningMethodHS256)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"no expiry", "Bearer " + noExpiry, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/analyze", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected(m).ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "clinic-1", rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"detail"`)
			}
		})
	}
}
