package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corsGet(mw func(http.Handler) http.Handler, origin string) (*httptest.ResponseRecorder, bool) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	return rec, called
}

func TestCORSListedOrigin(t *testing.T) {
	mw := CORS([]string{"https://app.nextvisit.example"})

	rec, called := corsGet(mw, "https://app.nextvisit.example")

	require.True(t, called)
	assert.Equal(t, "https://app.nextvisit.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Request-ID")
}

func TestCORSUnlistedOriginGetsNoHeaders(t *testing.T) {
	mw := CORS([]string{"https://app.nextvisit.example"})

	rec, called := corsGet(mw, "https://evil.example")

	// The request itself still runs; the browser enforces the missing grant.
	require.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardEchoesOrigin(t *testing.T) {
	mw := CORS([]string{"*"})

	rec, _ := corsGet(mw, "https://partner.example")

	assert.Equal(t, "https://partner.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSIgnoresBlankAllowlistEntries(t *testing.T) {
	mw := CORS([]string{"  ", "", "https://app.nextvisit.example "})

	rec, _ := corsGet(mw, "https://app.nextvisit.example")

	assert.Equal(t, "https://app.nextvisit.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	mw := CORS([]string{"https://app.nextvisit.example"})

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "https://app.nextvisit.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.nextvisit.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
