package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var operatorSecret = []byte("operator-secret")

func protected(secret []byte) http.Handler {
	return AuthMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, ok := Subject(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sub))
	}))
}

func callWith(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/verifications/export.csv", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	tok, err := IssueToken(operatorSecret, "ops", time.Hour, time.Now())
	require.NoError(t, err)

	rec := callWith(protected(operatorSecret), "Bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", rec.Body.String())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	valid, err := IssueToken(operatorSecret, "ops", time.Hour, time.Now())
	require.NoError(t, err)
	expired, err := IssueToken(operatorSecret, "ops", time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	foreign, err := IssueToken([]byte("other-secret"), "ops", time.Hour, time.Now())
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ops"}).SignedString(operatorSecret)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"no header":       "",
		"not bearer":      "Basic b3BzOm9wcw==",
		"empty bearer":    "Bearer ",
		"expired":         "Bearer " + expired,
		"wrong secret":    "Bearer " + foreign,
		"no expiry":       "Bearer " + noExp,
		"alg none":        "Bearer " + unsigned,
		"garbage":         "Bearer not-a-jwt",
		"truncated token": "Bearer " + valid[:len(valid)-4],
	}
	for name, authz := range tests {
		t.Run(name, func(t *testing.T) {
			rec := callWith(protected(operatorSecret), authz)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		})
	}

	rec := callWith(protected(nil), "Bearer "+valid)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "empty secret rejects everything")
}

func TestIssueTokenValidation(t *testing.T) {
	_, err := IssueToken(nil, "ops", time.Hour, time.Now())
	assert.Error(t, err)
	_, err = IssueToken(operatorSecret, " ", time.Hour, time.Now())
	assert.Error(t, err)
	_, err = IssueToken(operatorSecret, "ops", 0, time.Now())
	assert.Error(t, err)
}
