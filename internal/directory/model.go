package directory

import (
	"strings"
	"time"

	"github.com/nextvisit/practice-availability/internal/geo"
)

// Specialty is a medical specialty. The code is a stable unique identifier
// used as the routing key in outbound and inbound email correlation; it never
// changes once assigned.
type Specialty struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// PracticeSpecialty is a specialty offered by a practice, merged with the
// practice's availability row for that specialty.
type PracticeSpecialty struct {
	Specialty
	NextAvailable *time.Time `json:"next_available"`
	LastChecked   *time.Time `json:"last_checked,omitempty"`
}

// Practice is a medical practice location.
type Practice struct {
	ID                        int64               `json:"id"`
	Name                      string              `json:"name"`
	Address                   string              `json:"address"`
	City                      string              `json:"city"`
	State                     string              `json:"state"`
	ZipCode                   string              `json:"zip_code"`
	Phone                     string              `json:"phone"`
	Website                   string              `json:"website"`
	Location                  *geo.Point          `json:"location"`
	Email                     string              `json:"email,omitempty"`
	EmailNotificationsEnabled bool                `json:"email_notifications_enabled"`
	LastEmailSent             *time.Time          `json:"last_email_sent,omitempty"`
	AcceptsNewPatients        bool                `json:"accepts_new_patients"`
	Specialties               []PracticeSpecialty `json:"specialties"`
	Doctors                   []Doctor            `json:"doctors"`
	CreatedAt                 time.Time           `json:"created_at"`
	UpdatedAt                 time.Time           `json:"updated_at"`
}

// DoctorSpecialty is a specialty held by a doctor. At most one specialty is
// marked primary per doctor.
type DoctorSpecialty struct {
	Specialty
	Primary bool `json:"is_primary"`
}

// Doctor practices at one or more locations.
type Doctor struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Title             string            `json:"title"`
	AcceptingPatients bool              `json:"is_accepting_patients"`
	PracticeIDs       []int64           `json:"practice_ids,omitempty"`
	Specialties       []DoctorSpecialty `json:"specialties,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Availability is the next-available-appointment record for one
// (practice, specialty) pair. Exactly one row exists per pair; a nil
// NextAvailable means the practice reported no open appointments.
type Availability struct {
	PracticeID    int64      `json:"practice_id"`
	SpecialtyID   int64      `json:"specialty_id"`
	SpecialtyCode string     `json:"specialty_code,omitempty"`
	NextAvailable *time.Time `json:"next_available"`
	LastChecked   time.Time  `json:"last_checked"`
}

// EmailLog records one outbound request or inbound reply for audit.
type EmailLog struct {
	ID              string     `json:"id"`
	PracticeID      int64      `json:"practice_id"`
	EmailType       string     `json:"email_type"`
	ResponseContent string     `json:"response_content,omitempty"`
	ReceivedAt      *time.Time `json:"response_received_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Email log types.
const (
	EmailTypeWeeklyRequest = "weekly_availability_request"
	EmailTypeReplyReceived = "reply_received"
)

// CreatePracticeRequest is the payload for creating or updating a practice.
type CreatePracticeRequest struct {
	Name               string   `json:"name"`
	Address            string   `json:"address"`
	City               string   `json:"city"`
	State              string   `json:"state"`
	ZipCode            string   `json:"zip_code"`
	Phone              string   `json:"phone"`
	Website            string   `json:"website"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	Email              string   `json:"email"`
	AcceptsNewPatients *bool    `json:"accepts_new_patients"`
	Specialties        []string `json:"specialties"` // specialty codes
	DoctorIDs          []int64  `json:"doctors"`
}

// Validate checks required fields.
func (r *CreatePracticeRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	return nil
}

// Location assembles the optional coordinate pair. Both parts are required
// for a point; a partial pair counts as no coordinates.
func (r *CreatePracticeRequest) Location() *geo.Point {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &geo.Point{Lat: *r.Latitude, Lng: *r.Longitude}
}

// FullAddress joins the address parts for geocoding.
func (r *CreatePracticeRequest) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{r.Address, r.City, r.State, r.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// CreateDoctorRequest is the payload for creating or updating a doctor.
type CreateDoctorRequest struct {
	Name              string   `json:"name"`
	Title             string   `json:"title"`
	AcceptingPatients *bool    `json:"is_accepting_patients"`
	PracticeIDs       []int64  `json:"practice_ids"`
	Specialties       []string `json:"specialties"` // codes; first is primary
}

// Validate checks required fields.
func (r *CreateDoctorRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	return nil
}
