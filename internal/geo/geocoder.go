package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nextvisit/practice-availability/pkg/logging"
)

// ErrNotFound is returned when the geocoder cannot resolve an address.
var ErrNotFound = errors.New("geo: address not found")

const defaultHTTPTimeout = 8 * time.Second

// Geocoder resolves free-text addresses to coordinates. Only the admin
// data-entry flow geocodes; search consumes stored coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

// HTTPGeocoder talks to a Nominatim-compatible geocoding endpoint.
type HTTPGeocoder struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPGeocoder creates a geocoder against baseURL. A nil client gets a
// sane timeout so callers never hang on a slow upstream.
func NewHTTPGeocoder(baseURL, apiKey string, httpClient *http.Client, logger *logging.Logger) *HTTPGeocoder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPGeocoder{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

type geocodeResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves an address to a Point.
func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (Point, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return Point{}, fmt.Errorf("geo: address is required")
	}

	params := url.Values{}
	params.Set("q", trimmed)
	params.Set("format", "json")
	params.Set("limit", "1")
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Point{}, fmt.Errorf("geo: build geocode request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("geo: geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Point{}, fmt.Errorf("geo: geocoder returned status %d", resp.StatusCode)
	}

	var results []geocodeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Point{}, fmt.Errorf("geo: decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return Point{}, ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("geo: bad latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("geo: bad longitude %q: %w", results[0].Lon, err)
	}

	g.logger.Debug("geocoded address", "address", trimmed, "lat", lat, "lng", lng)
	return Point{Lat: lat, Lng: lng}, nil
}
