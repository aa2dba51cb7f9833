package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextvisit/practice-availability/internal/directory"
	"github.com/nextvisit/practice-availability/internal/inbound"
	"github.com/nextvisit/practice-availability/internal/notify"
	"github.com/nextvisit/practice-availability/internal/scheduler"
	"github.com/nextvisit/practice-availability/internal/search"
)

const adminSecret = "test-admin-secret"

func newTestServer(t *testing.T) (http.Handler, *directory.InMemoryRepository) {
	t.Helper()

	repo := directory.NewInMemoryRepository()
	repo.SeedSpecialties(directory.Specialty{Code: "derm", Name: "Dermatology"})

	searchSvc := search.NewService(repo, nil, search.NewPipeline(99999), search.DefaultWeights, nil)
	notifier := scheduler.NewWeeklyNotifier(repo, notify.NewStubEmailSender(nil), nil, nil)

	h := New(&Config{
		DirectoryHandler: directory.NewHandler(repo, nil, nil),
		SearchHandler:    search.NewHandler(searchSvc, nil, nil),
		InboundHandler:   inbound.NewHandler(repo, nil, nil, nil),
		Notifier:         notifier,
		AdminAuthSecret:  adminSecret,
	})
	return h, repo
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(adminSecret))
	require.NoError(t, err)
	return signed
}

func TestHealthRoute(t *testing.T) {
	h, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestPracticeLifecycleRoutes(t *testing.T) {
	h, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"name":        "Harborview",
		"email":       "h@example.com",
		"specialties": []string{"derm"},
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/practices", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created directory.Practice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/practices/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?specialty=derm", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRoute(t *testing.T) {
	h, repo := newTestServer(t)
	_, err := repo.CreatePractice(context.Background(), &directory.CreatePracticeRequest{
		Name:        "Harborview",
		Email:       "h@example.com",
		Specialties: []string{"derm"},
	}, nil)
	require.NoError(t, err)

	body, _ := json.Marshal(inbound.Reply{
		From: "h@example.com",
		Text: "Next opening 2025-04-02.\n\nPractice ID: 1\nSpecialty Code: derm",
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/email-reply", bytes.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRouteRequiresToken(t *testing.T) {
	h, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/send-weekly-emails", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/send-weekly-emails", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sent"`)
}
