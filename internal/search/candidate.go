package search

import (
	"math"
	"time"

	"github.com/nextvisit/practice-availability/internal/directory"
	"github.com/nextvisit/practice-availability/internal/geo"
)

// Candidate is an ephemeral, per-query merge of a practice with its
// qualifying availability entries plus computed distance and wait time.
// Candidates are rebuilt on every search and never persisted.
type Candidate struct {
	Practice directory.Practice `json:"practice"`

	// Distance in miles from the search origin, or geo.UnknownDistance when
	// the practice has no stored coordinates or no origin was given.
	Distance float64 `json:"-"`

	// Specialties holds the availability entries that survived filtering.
	Specialties []directory.PracticeSpecialty `json:"specialties"`

	// NextAvailable is the earliest surviving availability date, if any.
	NextAvailable *time.Time `json:"next_available"`

	// DaysUntil is the whole-day wait until NextAvailable. Negative when the
	// stored date is stale; nil when no date is on record.
	DaysUntil *int `json:"days_until"`
}

// DistanceMiles returns the candidate's distance for rendering, or nil when
// unknown.
func (c *Candidate) DistanceMiles() *float64 {
	if !geo.IsKnown(c.Distance) {
		return nil
	}
	d := c.Distance
	return &d
}

// HasDistance reports whether the candidate has a real computed distance.
func (c *Candidate) HasDistance() bool {
	return geo.IsKnown(c.Distance)
}

// daysUntil computes whole days from now until t, rounding partial days up,
// matching how wait times are presented to patients.
func daysUntil(now time.Time, t time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

// refreshDerived recomputes NextAvailable and DaysUntil from the surviving
// specialty entries. Called after each filtering step that mutates entries.
func (c *Candidate) refreshDerived(now time.Time) {
	c.NextAvailable = nil
	c.DaysUntil = nil
	for _, ps := range c.Specialties {
		if ps.NextAvailable == nil {
			continue
		}
		if c.NextAvailable == nil || ps.NextAvailable.Before(*c.NextAvailable) {
			t := *ps.NextAvailable
			c.NextAvailable = &t
		}
	}
	if c.NextAvailable != nil {
		d := daysUntil(now, *c.NextAvailable)
		c.DaysUntil = &d
	}
}
