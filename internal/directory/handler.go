package directory

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nextvisit/practice-availability/internal/geo"
	"github.com/nextvisit/practice-availability/pkg/logging"
)

// Handler exposes the directory CRUD surface.
type Handler struct {
	repo     Repository
	geocoder geo.Geocoder
	logger   *logging.Logger
}

// NewHandler creates a directory handler. The geocoder is optional; when set,
// practices created without coordinates are geocoded from their address.
func NewHandler(repo Repository, geocoder geo.Geocoder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, geocoder: geocoder, logger: logger}
}

// ListPractices handles GET /api/practices
func (h *Handler) ListPractices(w http.ResponseWriter, r *http.Request) {
	practices, err := h.repo.ListPractices(r.Context())
	if err != nil {
		h.logger.Error("failed to list practices", "error", err)
		http.Error(w, "failed to fetch practices", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, practices)
}

// GetPractice handles GET /api/practices/{id}
func (h *Handler) GetPractice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	practice, err := h.repo.GetPractice(r.Context(), id)
	if err != nil {
		h.respondRepoError(w, err, "failed to fetch practice")
		return
	}
	writeJSON(w, http.StatusOK, practice)
}

// CreatePractice handles POST /api/practices
func (h *Handler) CreatePractice(w http.ResponseWriter, r *http.Request) {
	var req CreatePracticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	practice, err := h.repo.CreatePractice(r.Context(), &req, h.resolveLocation(r, &req))
	if err != nil {
		h.respondRepoError(w, err, "failed to create practice")
		return
	}

	h.logger.Info("practice created", "id", practice.ID, "name", practice.Name)
	writeJSON(w, http.StatusCreated, practice)
}

// UpdatePractice handles PUT /api/practices/{id}
func (h *Handler) UpdatePractice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CreatePracticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	practice, err := h.repo.UpdatePractice(r.Context(), id, &req, h.resolveLocation(r, &req))
	if err != nil {
		h.respondRepoError(w, err, "failed to update practice")
		return
	}
	writeJSON(w, http.StatusOK, practice)
}

// DeletePractice handles DELETE /api/practices/{id}
func (h *Handler) DeletePractice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.repo.DeletePractice(r.Context(), id); err != nil {
		h.respondRepoError(w, err, "failed to delete practice")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdatePracticeEmailRequest is the payload for PUT /api/practices/{id}/email
type UpdatePracticeEmailRequest struct {
	Email                     string `json:"email"`
	EmailNotificationsEnabled bool   `json:"email_notifications_enabled"`
}

// UpdatePracticeEmail handles PUT /api/practices/{id}/email
func (h *Handler) UpdatePracticeEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdatePracticeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.repo.SetPracticeEmail(r.Context(), id, req.Email, req.EmailNotificationsEnabled); err != nil {
		h.respondRepoError(w, err, "failed to update email settings")
		return
	}
	practice, err := h.repo.GetPractice(r.Context(), id)
	if err != nil {
		h.respondRepoError(w, err, "failed to fetch practice")
		return
	}
	writeJSON(w, http.StatusOK, practice)
}

// ListSpecialties handles GET /api/specialties
func (h *Handler) ListSpecialties(w http.ResponseWriter, r *http.Request) {
	specs, err := h.repo.ListSpecialties(r.Context())
	if err != nil {
		h.logger.Error("failed to list specialties", "error", err)
		http.Error(w, "failed to fetch specialties", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, specs)
}

// ListDoctors handles GET /api/doctors
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.repo.ListDoctors(r.Context())
	if err != nil {
		h.logger.Error("failed to list doctors", "error", err)
		http.Error(w, "failed to fetch doctors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, doctors)
}

// CreateDoctor handles POST /api/doctors
func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	doctor, err := h.repo.CreateDoctor(r.Context(), &req)
	if err != nil {
		h.respondRepoError(w, err, "failed to create doctor")
		return
	}
	h.logger.Info("doctor created", "id", doctor.ID, "name", doctor.Name)
	writeJSON(w, http.StatusCreated, doctor)
}

// UpdateDoctor handles PUT /api/doctors/{id}
func (h *Handler) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	doctor, err := h.repo.UpdateDoctor(r.Context(), id, &req)
	if err != nil {
		h.respondRepoError(w, err, "failed to update doctor")
		return
	}
	writeJSON(w, http.StatusOK, doctor)
}

// DeleteDoctor handles DELETE /api/doctors/{id}
func (h *Handler) DeleteDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.repo.DeleteDoctor(r.Context(), id); err != nil {
		h.respondRepoError(w, err, "failed to delete doctor")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAppointments handles GET /api/appointments
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.ListAvailability(r.Context(), r.URL.Query().Get("specialty"))
	if err != nil {
		h.respondRepoError(w, err, "failed to fetch appointments")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// UpsertAppointmentRequest is the payload for POST /api/appointments
type UpsertAppointmentRequest struct {
	PracticeID    int64      `json:"practice_id"`
	SpecialtyCode string     `json:"specialty_code"`
	NextAvailable *time.Time `json:"next_available"`
}

// UpsertAppointment handles POST /api/appointments
func (h *Handler) UpsertAppointment(w http.ResponseWriter, r *http.Request) {
	var req UpsertAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PracticeID == 0 || req.SpecialtyCode == "" {
		http.Error(w, "practice_id and specialty_code are required", http.StatusBadRequest)
		return
	}

	spec, err := h.repo.GetSpecialtyByCode(r.Context(), req.SpecialtyCode)
	if err != nil {
		h.respondRepoError(w, err, "failed to resolve specialty")
		return
	}
	entry, err := h.repo.UpsertAvailability(r.Context(), req.PracticeID, spec.ID, req.NextAvailable)
	if err != nil {
		h.respondRepoError(w, err, "failed to update appointment")
		return
	}
	entry.SpecialtyCode = spec.Code
	writeJSON(w, http.StatusOK, entry)
}

// resolveLocation prefers explicit coordinates, then falls back to geocoding
// the address. Geocoder failure is tolerated: the practice is stored without
// coordinates and sorts last in distance-based searches.
func (h *Handler) resolveLocation(r *http.Request, req *CreatePracticeRequest) *geo.Point {
	if loc := req.Location(); loc != nil {
		return loc
	}
	if h.geocoder == nil {
		return nil
	}
	addr := req.FullAddress()
	if addr == "" {
		return nil
	}
	p, err := h.geocoder.Geocode(r.Context(), addr)
	if err != nil {
		h.logger.Warn("geocoding failed, storing practice without coordinates", "address", addr, "error", err)
		return nil
	}
	return &p
}

func (h *Handler) respondRepoError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrPracticeNotFound),
		errors.Is(err, ErrSpecialtyNotFound),
		errors.Is(err, ErrDoctorNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(fallback, "error", err)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
