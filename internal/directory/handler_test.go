package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nextvisit/practice-availability/internal/geo"
)

type fixedGeocoder struct {
	point geo.Point
	err   error
	calls int
}

func (f *fixedGeocoder) Geocode(ctx context.Context, address string) (geo.Point, error) {
	f.calls++
	return f.point, f.err
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/practices", h.ListPractices)
	r.Post("/api/practices", h.CreatePractice)
	r.Get("/api/practices/{id}", h.GetPractice)
	r.Put("/api/practices/{id}", h.UpdatePractice)
	r.Delete("/api/practices/{id}", h.DeletePractice)
	r.Put("/api/practices/{id}/email", h.UpdatePracticeEmail)
	r.Post("/api/appointments", h.UpsertAppointment)
	r.Get("/api/appointments", h.ListAppointments)
	return r
}

func TestCreatePracticeGeocodesWhenCoordinatesMissing(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.SeedSpecialties(Specialty{Code: "cardio", Name: "Cardiology"})
	gc := &fixedGeocoder{point: geo.Point{Lat: 35.78, Lng: -78.64}}
	router := newTestRouter(NewHandler(repo, gc, nil))

	body, _ := json.Marshal(CreatePracticeRequest{
		Name:        "Raleigh Heart",
		Address:     "100 Main St",
		City:        "Raleigh",
		State:       "NC",
		Specialties: []string{"cardio"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/practices", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var p Practice
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Location == nil || p.Location.Lat != 35.78 {
		t.Errorf("expected geocoded location, got %+v", p.Location)
	}
	if gc.calls != 1 {
		t.Errorf("expected one geocoder call, got %d", gc.calls)
	}
}

func TestCreatePracticeToleratesGeocoderFailure(t *testing.T) {
	repo := NewInMemoryRepository()
	gc := &fixedGeocoder{err: errors.New("upstream down")}
	router := newTestRouter(NewHandler(repo, gc, nil))

	body, _ := json.Marshal(CreatePracticeRequest{Name: "No Coords", Address: "1 Elm St"})
	req := httptest.NewRequest(http.MethodPost, "/api/practices", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite geocoder failure, got %d", w.Code)
	}
	var p Practice
	_ = json.NewDecoder(w.Body).Decode(&p)
	if p.Location != nil {
		t.Errorf("expected no coordinates, got %+v", p.Location)
	}
}

func TestCreatePracticeMissingName(t *testing.T) {
	router := newTestRouter(NewHandler(NewInMemoryRepository(), nil, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/practices", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUpdatePracticeEmail(t *testing.T) {
	repo := NewInMemoryRepository()
	p := seedPractice(t, repo, "Clinic")
	router := newTestRouter(NewHandler(repo, nil, nil))

	body := []byte(`{"email":"desk@clinic.example","email_notifications_enabled":true}`)
	req := httptest.NewRequest(http.MethodPut, "/api/practices/1/email", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got, err := repo.GetPractice(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != "desk@clinic.example" || !got.EmailNotificationsEnabled {
		t.Errorf("email settings not applied: %+v", got)
	}
}

func TestUpsertAppointmentEndpoint(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.SeedSpecialties(Specialty{Code: "cardio", Name: "Cardiology"})
	p := seedPractice(t, repo, "Clinic", "cardio")
	router := newTestRouter(NewHandler(repo, nil, nil))

	next := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	body, _ := json.Marshal(UpsertAppointmentRequest{
		PracticeID:    p.ID,
		SpecialtyCode: "cardio",
		NextAvailable: &next,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var entry Availability
	if err := json.NewDecoder(w.Body).Decode(&entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.NextAvailable == nil || !entry.NextAvailable.Equal(next) {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestUpsertAppointmentUnknownSpecialty(t *testing.T) {
	repo := NewInMemoryRepository()
	p := seedPractice(t, repo, "Clinic")
	router := newTestRouter(NewHandler(repo, nil, nil))

	body, _ := json.Marshal(UpsertAppointmentRequest{PracticeID: p.ID, SpecialtyCode: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
