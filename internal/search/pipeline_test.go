package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextvisit/practice-availability/internal/directory"
	"github.com/nextvisit/practice-availability/internal/geo"
)

const nationwideRadius = 99999.0

var pipelineNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func testPractice(name string, loc *geo.Point, specs ...directory.PracticeSpecialty) directory.Practice {
	return directory.Practice{Name: name, Location: loc, Specialties: specs}
}

func availEntry(code string, next *time.Time) directory.PracticeSpecialty {
	return directory.PracticeSpecialty{
		Specialty:     directory.Specialty{Code: code, Name: code},
		NextAvailable: next,
	}
}

func TestPipelineRadiusFilter(t *testing.T) {
	origin := geo.Point{Lat: 40.7128, Lng: -74.0060} // Manhattan
	practices := []directory.Practice{
		testPractice("downtown", &geo.Point{Lat: 40.7306, Lng: -73.9866},
			availEntry("derm", datePtr(pipelineNow.AddDate(0, 0, 3)))),
		testPractice("philadelphia", &geo.Point{Lat: 39.9526, Lng: -75.1652},
			availEntry("derm", datePtr(pipelineNow.AddDate(0, 0, 1)))),
		testPractice("no-coords", nil,
			availEntry("derm", datePtr(pipelineNow.AddDate(0, 0, 1)))),
	}

	p := NewPipeline(nationwideRadius)
	results := p.Run(practices, Params{
		Origin:      &origin,
		RadiusMiles: 25,
		Strategy:    StrategyDistance,
		Now:         pipelineNow,
	})

	// Philadelphia is ~80 miles out; the no-coordinate practice never
	// passes a finite radius.
	require.Len(t, results, 1)
	assert.Equal(t, "downtown", results[0].Practice.Name)
	require.NotNil(t, results[0].DistanceMiles())
	assert.Less(t, *results[0].DistanceMiles(), 5.0)
}

func TestPipelineNationwideRadiusDisablesFilter(t *testing.T) {
	origin := geo.Point{Lat: 40.7128, Lng: -74.0060}
	practices := []directory.Practice{
		testPractice("seattle", &geo.Point{Lat: 47.6062, Lng: -122.3321},
			availEntry("derm", datePtr(pipelineNow.AddDate(0, 0, 2)))),
		testPractice("no-coords", nil,
			availEntry("derm", datePtr(pipelineNow.AddDate(0, 0, 2)))),
	}

	p := NewPipeline(nationwideRadius)
	results := p.Run(practices, Params{
		Origin:      &origin,
		RadiusMiles: nationwideRadius,
		Strategy:    StrategyDistance,
		Now:         pipelineNow,
	})

	assert.Len(t, results, 2)
}

func TestPipelineDateWindowNullsOutOfWindowEntries(t *testing.T) {
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 20, 23, 59, 59, 0, time.UTC)

	practices := []directory.Practice{
		testPractice("mixed", nil,
			availEntry("derm", datePtr(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))),
			availEntry("cardio", datePtr(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)))),
		testPractice("all-outside", nil,
			availEntry("derm", datePtr(time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)))),
		testPractice("undated", nil,
			availEntry("derm", nil)),
	}

	p := NewPipeline(nationwideRadius)
	results := p.Run(practices, Params{
		DateFrom: &from,
		DateTo:   &to,
		Strategy: StrategyAvailability,
		Now:      pipelineNow,
	})

	require.Len(t, results, 1)
	got := results[0]
	assert.Equal(t, "mixed", got.Practice.Name)
	// The out-of-window derm date is nulled, not carried through.
	for _, ps := range got.Specialties {
		if ps.Code == "derm" {
			assert.Nil(t, ps.NextAvailable)
		}
	}
	require.NotNil(t, got.NextAvailable)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), *got.NextAvailable)
}

func TestPipelineSpecialtyFilterAfterDateWindow(t *testing.T) {
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	// The derm date misses the window, so with both filters active this
	// practice must not qualify for a derm search even though its cardio
	// entry survives the window.
	practices := []directory.Practice{
		testPractice("cardio-only-in-window", nil,
			availEntry("derm", datePtr(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))),
			availEntry("cardio", datePtr(time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)))),
	}

	p := NewPipeline(nationwideRadius)

	results := p.Run(practices, Params{
		SpecialtyCode: "derm",
		DateFrom:      &from,
		DateTo:        &to,
		Now:           pipelineNow,
	})
	assert.Empty(t, results)

	results = p.Run(practices, Params{
		SpecialtyCode: "cardio",
		DateFrom:      &from,
		DateTo:        &to,
		Now:           pipelineNow,
	})
	require.Len(t, results, 1)
	require.Len(t, results[0].Specialties, 1)
	assert.Equal(t, "cardio", results[0].Specialties[0].Code)
}

func TestPipelineSpecialtyCodeCaseInsensitive(t *testing.T) {
	practices := []directory.Practice{
		testPractice("clinic", nil,
			availEntry("family-medicine", datePtr(pipelineNow.AddDate(0, 0, 4)))),
	}

	p := NewPipeline(nationwideRadius)
	results := p.Run(practices, Params{SpecialtyCode: "Family-Medicine", Now: pipelineNow})

	assert.Len(t, results, 1)
}

func TestPipelineDoesNotMutateInput(t *testing.T) {
	next := datePtr(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	practices := []directory.Practice{
		testPractice("clinic", nil, availEntry("derm", next)),
	}

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	p := NewPipeline(nationwideRadius)
	p.Run(practices, Params{DateFrom: &from, DateTo: &to, Now: pipelineNow})

	// Window filtering nulls dates on the candidate copy only.
	require.NotNil(t, practices[0].Specialties[0].NextAvailable)
	assert.Equal(t, *next, *practices[0].Specialties[0].NextAvailable)
}

func TestPipelineDaysUntilDerived(t *testing.T) {
	practices := []directory.Practice{
		testPractice("clinic", nil,
			availEntry("derm", datePtr(pipelineNow.Add(36*time.Hour)))),
	}

	p := NewPipeline(nationwideRadius)
	results := p.Run(practices, Params{Now: pipelineNow})

	require.Len(t, results, 1)
	require.NotNil(t, results[0].DaysUntil)
	assert.Equal(t, 2, *results[0].DaysUntil)
}
