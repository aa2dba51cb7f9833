package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextvisit/practice-availability/internal/geo"
)

// Repository is the datastore contract for practices, doctors, specialties,
// availability, and the email audit trail.
type Repository interface {
	ListPractices(ctx context.Context) ([]Practice, error)
	GetPractice(ctx context.Context, id int64) (*Practice, error)
	CreatePractice(ctx context.Context, req *CreatePracticeRequest, loc *geo.Point) (*Practice, error)
	UpdatePractice(ctx context.Context, id int64, req *CreatePracticeRequest, loc *geo.Point) (*Practice, error)
	DeletePractice(ctx context.Context, id int64) error
	SetPracticeEmail(ctx context.Context, id int64, email string, enabled bool) error

	ListSpecialties(ctx context.Context) ([]Specialty, error)
	GetSpecialtyByCode(ctx context.Context, code string) (*Specialty, error)

	ListDoctors(ctx context.Context) ([]Doctor, error)
	CreateDoctor(ctx context.Context, req *CreateDoctorRequest) (*Doctor, error)
	UpdateDoctor(ctx context.Context, id int64, req *CreateDoctorRequest) (*Doctor, error)
	DeleteDoctor(ctx context.Context, id int64) error

	ListAvailability(ctx context.Context, specialtyCode string) ([]Availability, error)
	UpsertAvailability(ctx context.Context, practiceID, specialtyID int64, next *time.Time) (*Availability, error)

	ListNotifiable(ctx context.Context) ([]Practice, error)
	MarkContacted(ctx context.Context, practiceID int64, at time.Time) error
	Unsubscribe(ctx context.Context, practiceID int64) error
	AppendEmailLog(ctx context.Context, entry *EmailLog) error
}

// InMemoryRepository is a map-backed Repository for tests and local
// development without a database.
type InMemoryRepository struct {
	mu sync.RWMutex

	practices   map[int64]*Practice
	doctors     map[int64]*Doctor
	specialties map[int64]*Specialty

	// availability keyed by practice then specialty, mirroring the store's
	// uniqueness constraint on the pair.
	availability map[int64]map[int64]*Availability

	practiceSpecialties map[int64][]int64 // practice -> specialty ids
	doctorPractices     map[int64][]int64 // doctor -> practice ids

	emailLogs []EmailLog

	nextPracticeID int64
	nextDoctorID   int64
	nextSpecialty  int64
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		practices:           make(map[int64]*Practice),
		doctors:             make(map[int64]*Doctor),
		specialties:         make(map[int64]*Specialty),
		availability:        make(map[int64]map[int64]*Availability),
		practiceSpecialties: make(map[int64][]int64),
		doctorPractices:     make(map[int64][]int64),
	}
}

// SeedSpecialties registers specialties, assigning ids. Intended for tests
// and local bootstrap.
func (r *InMemoryRepository) SeedSpecialties(specs ...Specialty) []Specialty {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Specialty, 0, len(specs))
	for _, s := range specs {
		r.nextSpecialty++
		s.ID = r.nextSpecialty
		r.specialties[s.ID] = &Specialty{ID: s.ID, Code: s.Code, Name: s.Name}
		out = append(out, s)
	}
	return out
}

func (r *InMemoryRepository) ListPractices(ctx context.Context) ([]Practice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Practice, 0, len(r.practices))
	for _, p := range r.practices {
		out = append(out, r.assemblePractice(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryRepository) GetPractice(ctx context.Context, id int64) (*Practice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.practices[id]
	if !ok {
		return nil, ErrPracticeNotFound
	}
	full := r.assemblePractice(p)
	return &full, nil
}

func (r *InMemoryRepository) CreatePractice(ctx context.Context, req *CreatePracticeRequest, loc *geo.Point) (*Practice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextPracticeID++
	now := time.Now().UTC()
	accepts := true
	if req.AcceptsNewPatients != nil {
		accepts = *req.AcceptsNewPatients
	}
	p := &Practice{
		ID:                        r.nextPracticeID,
		Name:                      req.Name,
		Address:                   req.Address,
		City:                      req.City,
		State:                     req.State,
		ZipCode:                   req.ZipCode,
		Phone:                     req.Phone,
		Website:                   req.Website,
		Location:                  loc,
		Email:                     req.Email,
		EmailNotificationsEnabled: req.Email != "",
		AcceptsNewPatients:        accepts,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	r.practices[p.ID] = p

	if err := r.linkSpecialtiesLocked(p.ID, req.Specialties); err != nil {
		return nil, err
	}
	for _, docID := range req.DoctorIDs {
		if _, ok := r.doctors[docID]; !ok {
			return nil, ErrDoctorNotFound
		}
		r.doctorPractices[docID] = append(r.doctorPractices[docID], p.ID)
	}

	full := r.assemblePractice(p)
	return &full, nil
}

func (r *InMemoryRepository) UpdatePractice(ctx context.Context, id int64, req *CreatePracticeRequest, loc *geo.Point) (*Practice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.practices[id]
	if !ok {
		return nil, ErrPracticeNotFound
	}
	p.Name = req.Name
	p.Address = req.Address
	p.City = req.City
	p.State = req.State
	p.ZipCode = req.ZipCode
	p.Phone = req.Phone
	p.Website = req.Website
	if loc != nil {
		p.Location = loc
	}
	if req.Email != "" {
		p.Email = req.Email
	}
	if req.AcceptsNewPatients != nil {
		p.AcceptsNewPatients = *req.AcceptsNewPatients
	}
	p.UpdatedAt = time.Now().UTC()

	if req.Specialties != nil {
		r.practiceSpecialties[id] = nil
		if err := r.linkSpecialtiesLocked(id, req.Specialties); err != nil {
			return nil, err
		}
	}

	full := r.assemblePractice(p)
	return &full, nil
}

func (r *InMemoryRepository) DeletePractice(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.practices[id]; !ok {
		return ErrPracticeNotFound
	}
	delete(r.practices, id)
	delete(r.practiceSpecialties, id)
	delete(r.availability, id)
	for docID, pids := range r.doctorPractices {
		kept := pids[:0]
		for _, pid := range pids {
			if pid != id {
				kept = append(kept, pid)
			}
		}
		r.doctorPractices[docID] = kept
	}
	return nil
}

func (r *InMemoryRepository) SetPracticeEmail(ctx context.Context, id int64, email string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.practices[id]
	if !ok {
		return ErrPracticeNotFound
	}
	p.Email = email
	p.EmailNotificationsEnabled = enabled
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Specialty, 0, len(r.specialties))
	for _, s := range r.specialties {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryRepository) GetSpecialtyByCode(ctx context.Context, code string) (*Specialty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.specialtyByCodeLocked(code)
	if s == nil {
		return nil, ErrSpecialtyNotFound
	}
	out := *s
	return &out, nil
}

func (r *InMemoryRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		doc := *d
		doc.PracticeIDs = append([]int64(nil), r.doctorPractices[d.ID]...)
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryRepository) CreateDoctor(ctx context.Context, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextDoctorID++
	now := time.Now().UTC()
	title := req.Title
	if title == "" {
		title = "MD"
	}
	accepting := true
	if req.AcceptingPatients != nil {
		accepting = *req.AcceptingPatients
	}
	d := &Doctor{
		ID:                r.nextDoctorID,
		Name:              req.Name,
		Title:             title,
		AcceptingPatients: accepting,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := r.setDoctorSpecialtiesLocked(d, req.Specialties); err != nil {
		return nil, err
	}
	for _, pid := range req.PracticeIDs {
		if _, ok := r.practices[pid]; !ok {
			return nil, ErrPracticeNotFound
		}
	}
	r.doctors[d.ID] = d
	r.doctorPractices[d.ID] = append([]int64(nil), req.PracticeIDs...)

	out := *d
	out.PracticeIDs = append([]int64(nil), req.PracticeIDs...)
	return &out, nil
}

func (r *InMemoryRepository) UpdateDoctor(ctx context.Context, id int64, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	d.Name = req.Name
	if req.Title != "" {
		d.Title = req.Title
	}
	if req.AcceptingPatients != nil {
		d.AcceptingPatients = *req.AcceptingPatients
	}
	if req.Specialties != nil {
		if err := r.setDoctorSpecialtiesLocked(d, req.Specialties); err != nil {
			return nil, err
		}
	}
	if req.PracticeIDs != nil {
		r.doctorPractices[id] = append([]int64(nil), req.PracticeIDs...)
	}
	d.UpdatedAt = time.Now().UTC()

	out := *d
	out.PracticeIDs = append([]int64(nil), r.doctorPractices[id]...)
	return &out, nil
}

func (r *InMemoryRepository) DeleteDoctor(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	delete(r.doctors, id)
	delete(r.doctorPractices, id)
	return nil
}

func (r *InMemoryRepository) ListAvailability(ctx context.Context, specialtyCode string) ([]Availability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var specID int64
	if specialtyCode != "" {
		s := r.specialtyByCodeLocked(specialtyCode)
		if s == nil {
			return nil, ErrSpecialtyNotFound
		}
		specID = s.ID
	}

	var out []Availability
	for _, perSpec := range r.availability {
		for sid, a := range perSpec {
			if specID != 0 && sid != specID {
				continue
			}
			entry := *a
			if s := r.specialties[sid]; s != nil {
				entry.SpecialtyCode = s.Code
			}
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].NextAvailable, out[j].NextAvailable
		if ai == nil {
			return false
		}
		if aj == nil {
			return true
		}
		return ai.Before(*aj)
	})
	return out, nil
}

func (r *InMemoryRepository) UpsertAvailability(ctx context.Context, practiceID, specialtyID int64, next *time.Time) (*Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.practices[practiceID]; !ok {
		return nil, ErrPracticeNotFound
	}
	if _, ok := r.specialties[specialtyID]; !ok {
		return nil, ErrSpecialtyNotFound
	}

	perSpec := r.availability[practiceID]
	if perSpec == nil {
		perSpec = make(map[int64]*Availability)
		r.availability[practiceID] = perSpec
	}
	a := &Availability{
		PracticeID:    practiceID,
		SpecialtyID:   specialtyID,
		NextAvailable: normalizeUTC(next),
		LastChecked:   time.Now().UTC(),
	}
	perSpec[specialtyID] = a

	out := *a
	return &out, nil
}

func (r *InMemoryRepository) ListNotifiable(ctx context.Context) ([]Practice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Practice
	for _, p := range r.practices {
		if !p.EmailNotificationsEnabled || strings.TrimSpace(p.Email) == "" {
			continue
		}
		out = append(out, r.assemblePractice(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) MarkContacted(ctx context.Context, practiceID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.practices[practiceID]
	if !ok {
		return ErrPracticeNotFound
	}
	at = at.UTC()
	p.LastEmailSent = &at
	return nil
}

func (r *InMemoryRepository) Unsubscribe(ctx context.Context, practiceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.practices[practiceID]
	if !ok {
		return ErrPracticeNotFound
	}
	p.EmailNotificationsEnabled = false
	return nil
}

func (r *InMemoryRepository) AppendEmailLog(ctx context.Context, entry *EmailLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.emailLogs = append(r.emailLogs, *entry)
	return nil
}

// EmailLogs returns a copy of the audit trail. Test helper.
func (r *InMemoryRepository) EmailLogs() []EmailLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EmailLog(nil), r.emailLogs...)
}

func (r *InMemoryRepository) specialtyByCodeLocked(code string) *Specialty {
	for _, s := range r.specialties {
		if strings.EqualFold(s.Code, code) {
			return s
		}
	}
	return nil
}

func (r *InMemoryRepository) linkSpecialtiesLocked(practiceID int64, codes []string) error {
	for _, code := range codes {
		s := r.specialtyByCodeLocked(code)
		if s == nil {
			return ErrSpecialtyNotFound
		}
		r.practiceSpecialties[practiceID] = append(r.practiceSpecialties[practiceID], s.ID)
	}
	return nil
}

func (r *InMemoryRepository) setDoctorSpecialtiesLocked(d *Doctor, codes []string) error {
	d.Specialties = nil
	for i, code := range codes {
		s := r.specialtyByCodeLocked(code)
		if s == nil {
			return ErrSpecialtyNotFound
		}
		d.Specialties = append(d.Specialties, DoctorSpecialty{Specialty: *s, Primary: i == 0})
	}
	return nil
}

// assemblePractice merges a practice with its specialty links, availability
// rows, and doctors. Callers must hold at least the read lock.
func (r *InMemoryRepository) assemblePractice(p *Practice) Practice {
	out := *p
	out.Specialties = nil
	out.Doctors = nil

	perSpec := r.availability[p.ID]
	for _, sid := range r.practiceSpecialties[p.ID] {
		s := r.specialties[sid]
		if s == nil {
			continue
		}
		ps := PracticeSpecialty{Specialty: *s}
		if a, ok := perSpec[sid]; ok {
			ps.NextAvailable = a.NextAvailable
			checked := a.LastChecked
			ps.LastChecked = &checked
		}
		out.Specialties = append(out.Specialties, ps)
	}
	sort.Slice(out.Specialties, func(i, j int) bool { return out.Specialties[i].Code < out.Specialties[j].Code })

	for docID, pids := range r.doctorPractices {
		for _, pid := range pids {
			if pid != p.ID {
				continue
			}
			if d := r.doctors[docID]; d != nil {
				out.Doctors = append(out.Doctors, *d)
			}
			break
		}
	}
	sort.Slice(out.Doctors, func(i, j int) bool { return out.Doctors[i].ID < out.Doctors[j].ID })
	return out
}

func normalizeUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

var _ Repository = (*InMemoryRepository)(nil)
