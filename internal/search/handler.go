package search

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nextvisit/practice-availability/internal/observability/metrics"
	"github.com/nextvisit/practice-availability/pkg/logging"
)

const dateParam = "2006-01-02"

// Handler exposes the search endpoint.
type Handler struct {
	service *Service
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewHandler creates a search HTTP handler. metrics may be nil.
func NewHandler(service *Service, m *metrics.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, metrics: m, logger: logger.WithComponent("search_handler")}
}

type searchResult struct {
	Candidate
	DistanceMiles *float64 `json:"distance_miles"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	Count   int            `json:"count"`
	Sort    string         `json:"sort"`
}

// Search handles GET /api/search. Origin comes from lat/lng or a free-text
// location; both absent means an unranked-by-distance nationwide search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	candidates, err := h.service.Search(r.Context(), query)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveSearch(string(query.Strategy), len(candidates))

	results := make([]searchResult, 0, len(candidates))
	for i := range candidates {
		results = append(results, searchResult{
			Candidate:     candidates[i],
			DistanceMiles: candidates[i].DistanceMiles(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(searchResponse{
		Results: results,
		Count:   len(results),
		Sort:    string(query.Strategy),
	}); err != nil {
		h.logger.Error("encoding search response", "error", err)
	}
}

func parseQuery(r *http.Request) (Query, error) {
	q := r.URL.Query()

	strategy, err := ParseStrategy(q.Get("sort"))
	if err != nil {
		return Query{}, err
	}

	query := Query{
		Location:      q.Get("location"),
		SpecialtyCode: q.Get("specialty"),
		Strategy:      strategy,
	}

	// Practice-centric callers weight soonest availability more heavily.
	switch q.Get("profile") {
	case "", "patient":
	case "practice":
		query.Weights = PracticeSearchWeights
	default:
		return Query{}, errInvalidParam("profile")
	}

	if v := q.Get("lat"); v != "" {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Query{}, errInvalidParam("lat")
		}
		query.Lat = &lat
	}
	if v := q.Get("lng"); v != "" {
		lng, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Query{}, errInvalidParam("lng")
		}
		query.Lng = &lng
	}
	if (query.Lat == nil) != (query.Lng == nil) {
		return Query{}, errInvalidParam("lat/lng must be given together")
	}
	if v := q.Get("radius"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil || radius < 0 {
			return Query{}, errInvalidParam("radius")
		}
		query.RadiusMiles = radius
	}
	if v := q.Get("date_from"); v != "" {
		from, err := time.ParseInLocation(dateParam, v, time.UTC)
		if err != nil {
			return Query{}, errInvalidParam("date_from")
		}
		query.DateFrom = &from
	}
	if v := q.Get("date_to"); v != "" {
		to, err := time.ParseInLocation(dateParam, v, time.UTC)
		if err != nil {
			return Query{}, errInvalidParam("date_to")
		}
		// Inclusive upper bound: availability any time that day qualifies.
		end := to.Add(24*time.Hour - time.Nanosecond)
		query.DateTo = &end
	}
	if query.DateFrom != nil && query.DateTo != nil && query.DateTo.Before(*query.DateFrom) {
		return Query{}, errInvalidParam("date_to before date_from")
	}

	return query, nil
}

type paramError string

func (e paramError) Error() string { return "invalid query parameter: " + string(e) }

func errInvalidParam(name string) error { return paramError(name) }
