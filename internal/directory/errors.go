package directory

import "errors"

var (
	// ErrPracticeNotFound is returned when a practice id does not exist
	ErrPracticeNotFound = errors.New("practice not found")

	// ErrSpecialtyNotFound is returned when a specialty code does not exist
	ErrSpecialtyNotFound = errors.New("specialty not found")

	// ErrDoctorNotFound is returned when a doctor id does not exist
	ErrDoctorNotFound = errors.New("doctor not found")

	// ErrInvalidName is returned when a required name is missing
	ErrInvalidName = errors.New("name is required")
)
