package search

import (
	"strings"
	"time"

	"github.com/nextvisit/practice-availability/internal/directory"
	"github.com/nextvisit/practice-availability/internal/geo"
)

// Params are the request-scoped search inputs. The pipeline never mutates
// shared state; every search re-derives its candidate set.
type Params struct {
	Origin        *geo.Point
	RadiusMiles   float64
	SpecialtyCode string
	DateFrom      *time.Time
	DateTo        *time.Time
	Strategy      Strategy
	Weights       Weights
	Now           time.Time
}

// Pipeline applies distance computation, radius/date/specialty filtering,
// and ranking over a snapshot of practices.
type Pipeline struct {
	// maxRadiusMiles is the configured "nationwide" sentinel: a requested
	// radius at or above it disables distance filtering entirely.
	maxRadiusMiles float64
}

// NewPipeline creates a pipeline with the given nationwide radius sentinel.
func NewPipeline(maxRadiusMiles float64) *Pipeline {
	return &Pipeline{maxRadiusMiles: maxRadiusMiles}
}

// Run filters and ranks practices. Pure: the input slice is not modified,
// and a failure to derive one candidate drops only that candidate.
func (p *Pipeline) Run(practices []directory.Practice, params Params) []Candidate {
	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if params.Weights == (Weights{}) {
		params.Weights = DefaultWeights
	}

	candidates := make([]Candidate, 0, len(practices))
	for _, practice := range practices {
		c := Candidate{
			Practice:    practice,
			Distance:    geo.UnknownDistance,
			Specialties: append([]directory.PracticeSpecialty(nil), practice.Specialties...),
		}
		if params.Origin != nil {
			c.Distance = geo.MilesTo(*params.Origin, practice.Location)
		}
		candidates = append(candidates, c)
	}

	candidates = p.filterRadius(candidates, params)
	candidates = filterDateWindow(candidates, params)
	candidates = filterSpecialty(candidates, params)

	for i := range candidates {
		candidates[i].refreshDerived(now)
	}

	Sort(candidates, params.Strategy, params.Weights)
	return candidates
}

// filterRadius drops candidates beyond the requested radius. A radius at or
// above the nationwide sentinel (or a missing origin) disables the filter;
// unknown distances never pass a finite radius.
func (p *Pipeline) filterRadius(candidates []Candidate, params Params) []Candidate {
	if params.Origin == nil || params.RadiusMiles <= 0 || params.RadiusMiles >= p.maxRadiusMiles {
		return candidates
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if c.HasDistance() && c.Distance <= params.RadiusMiles {
			kept = append(kept, c)
		}
	}
	return kept
}

// filterDateWindow nulls out availability dates outside [DateFrom, DateTo]
// and drops candidates left with no dated entry. Runs before the specialty
// filter so that a practice is never excluded for a window miss on a
// specialty the caller did not ask about.
func filterDateWindow(candidates []Candidate, params Params) []Candidate {
	if params.DateFrom == nil && params.DateTo == nil {
		return candidates
	}
	kept := candidates[:0]
	for _, c := range candidates {
		qualifying := 0
		for i := range c.Specialties {
			ps := &c.Specialties[i]
			if ps.NextAvailable == nil {
				continue
			}
			if inWindow(*ps.NextAvailable, params.DateFrom, params.DateTo) {
				qualifying++
			} else {
				ps.NextAvailable = nil
			}
		}
		if qualifying > 0 {
			kept = append(kept, c)
		}
	}
	return kept
}

// filterSpecialty keeps candidates offering the requested specialty with a
// surviving availability entry, and narrows their entries to that specialty.
func filterSpecialty(candidates []Candidate, params Params) []Candidate {
	if params.SpecialtyCode == "" {
		return candidates
	}
	windowed := params.DateFrom != nil || params.DateTo != nil
	kept := candidates[:0]
	for _, c := range candidates {
		var matched []directory.PracticeSpecialty
		for _, ps := range c.Specialties {
			if !strings.EqualFold(ps.Code, params.SpecialtyCode) {
				continue
			}
			if windowed && ps.NextAvailable == nil {
				continue
			}
			matched = append(matched, ps)
		}
		if len(matched) > 0 {
			c.Specialties = matched
			kept = append(kept, c)
		}
	}
	return kept
}

func inWindow(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

