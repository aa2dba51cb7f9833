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

func adminToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func adminRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/admin/send-weekly-emails", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAdminJWTClosedWithoutSecret(t *testing.T) {
	mw := AdminJWT("")
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with admin auth disabled")
	})).ServeHTTP(rec, adminRequest(adminToken(t, "any", "ops")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTMissingBearer(t *testing.T) {
	mw := AdminJWT("weekly-secret")
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	})).ServeHTTP(rec, adminRequest(""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTWrongSecret(t *testing.T) {
	mw := AdminJWT("weekly-secret")
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a bad signature")
	})).ServeHTTP(rec, adminRequest(adminToken(t, "other-secret", "ops")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTRejectsUnsignedAlg(t *testing.T) {
	// header {"alg":"none","typ":"JWT"} with claims {"sub":"scheduler-admin"}
	// and no signature must fail before any verification happens.
	unsigned := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJzY2hlZHVsZXItYWRtaW4ifQ."

	mw := AdminJWT("weekly-secret")
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for an unsigned token")
	})).ServeHTTP(rec, adminRequest(unsigned))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTValidTokenExposesSubject(t *testing.T) {
	mw := AdminJWT("weekly-secret")
	rec := httptest.NewRecorder()

	var subject string
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = AdminSubjectFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rec, adminRequest(adminToken(t, "weekly-secret", "on-call")))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "on-call", subject)
}
