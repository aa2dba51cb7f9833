package search

import (
	"context"
	"fmt"
	"time"

	"github.com/nextvisit/practice-availability/internal/directory"
	"github.com/nextvisit/practice-availability/internal/geo"
	"github.com/nextvisit/practice-availability/pkg/logging"
)

// Query is a resolved search request. Location free text, if present, is
// geocoded by the service before the pipeline runs.
type Query struct {
	Lat           *float64
	Lng           *float64
	Location      string
	RadiusMiles   float64
	SpecialtyCode string
	DateFrom      *time.Time
	DateTo        *time.Time
	Strategy      Strategy
	// Weights overrides the service's configured balanced split when
	// non-zero. Set for practice-centric callers.
	Weights Weights
}

// Service resolves an origin for the query and runs the pipeline over the
// current practice directory.
type Service struct {
	repo     directory.Repository
	geocoder geo.Geocoder
	pipeline *Pipeline
	weights  Weights
	logger   *logging.Logger
}

// NewService wires a search service. geocoder may be nil when free-text
// location resolution is not configured.
func NewService(repo directory.Repository, geocoder geo.Geocoder, pipeline *Pipeline, weights Weights, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		geocoder: geocoder,
		pipeline: pipeline,
		weights:  weights,
		logger:   logger.WithComponent("search"),
	}
}

// Search resolves the query origin, loads practices, and returns ranked
// candidates. A geocoding miss degrades to an origin-less search rather than
// failing the request.
func (s *Service) Search(ctx context.Context, q Query) ([]Candidate, error) {
	origin, err := s.resolveOrigin(ctx, q)
	if err != nil {
		return nil, err
	}

	practices, err := s.repo.ListPractices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing practices: %w", err)
	}

	weights := s.weights
	if q.Weights != (Weights{}) {
		weights = q.Weights
	}

	params := Params{
		Origin:        origin,
		RadiusMiles:   q.RadiusMiles,
		SpecialtyCode: q.SpecialtyCode,
		DateFrom:      q.DateFrom,
		DateTo:        q.DateTo,
		Strategy:      q.Strategy,
		Weights:       weights,
		Now:           time.Now().UTC(),
	}
	return s.pipeline.Run(practices, params), nil
}

func (s *Service) resolveOrigin(ctx context.Context, q Query) (*geo.Point, error) {
	if q.Lat != nil && q.Lng != nil {
		return &geo.Point{Lat: *q.Lat, Lng: *q.Lng}, nil
	}
	if q.Location == "" {
		return nil, nil
	}
	if s.geocoder == nil {
		s.logger.Warn("free-text location given but no geocoder configured", "location", q.Location)
		return nil, nil
	}
	pt, err := s.geocoder.Geocode(ctx, q.Location)
	if err != nil {
		s.logger.Warn("geocoding search location failed, searching without origin",
			"location", q.Location, "error", err)
		return nil, nil
	}
	return &pt, nil
}
