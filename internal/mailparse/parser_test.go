package mailparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday, so "next Tuesday" is unambiguous.
var parseRef = time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)

func TestParseUnsubscribeWinsOverDate(t *testing.T) {
	p := New()

	r := p.ParseAt("Please unsubscribe us. We do have an opening 03/20/2025.", parseRef)

	assert.Equal(t, OutcomeUnsubscribe, r.Outcome)
	assert.Nil(t, r.NextAvailable)
}

func TestParseNoAvailability(t *testing.T) {
	p := New()

	for _, body := range []string{
		"No availability right now, sorry.",
		"We are fully booked through spring.",
		"Dr. Patel is not accepting new patients at this time.",
	} {
		r := p.ParseAt(body, parseRef)
		assert.Equal(t, OutcomeNone, r.Outcome, "body: %s", body)
	}
}

func TestParseBareNoneReply(t *testing.T) {
	p := New()

	// The outbound email asks practices with no openings to reply "NONE".
	for _, body := range []string{"NONE", "None", "none.", "None at the moment"} {
		r := p.ParseAt(body, parseRef)
		assert.Equal(t, OutcomeNone, r.Outcome, "body: %s", body)
		assert.Nil(t, r.NextAvailable)
	}
}

func TestParseSlashDate(t *testing.T) {
	p := New()

	r := p.ParseAt("Our next available appointment is 03/15/2025.", parseRef)

	require.Equal(t, OutcomeAvailability, r.Outcome)
	require.NotNil(t, r.NextAvailable)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), *r.NextAvailable)
}

func TestParseISODate(t *testing.T) {
	p := New()

	r := p.ParseAt("Earliest slot: 2025-04-02", parseRef)

	require.Equal(t, OutcomeAvailability, r.Outcome)
	require.NotNil(t, r.NextAvailable)
	assert.Equal(t, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), *r.NextAvailable)
}

func TestParseNaturalLanguageDate(t *testing.T) {
	p := New()

	r := p.ParseAt("We could fit someone in next Tuesday.", parseRef)

	require.Equal(t, OutcomeAvailability, r.Outcome)
	require.NotNil(t, r.NextAvailable)
	got := *r.NextAvailable
	assert.Equal(t, time.Tuesday, got.Weekday())
	assert.True(t, got.After(parseRef), "resolved date must be in the future")
	// Normalized to midnight UTC.
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, time.UTC, got.Location())
}

func TestParseImpossibleDateIsUnknown(t *testing.T) {
	p := New()

	r := p.ParseAt("How about 02/30/2025?", parseRef)

	assert.Equal(t, OutcomeUnknown, r.Outcome)
}

func TestParseUnknown(t *testing.T) {
	p := New()

	r := p.ParseAt("Thanks for reaching out, I'll check with the office manager.", parseRef)

	assert.Equal(t, OutcomeUnknown, r.Outcome)
	assert.Nil(t, r.NextAvailable)
}

func TestExtractRouting(t *testing.T) {
	body := `> Please reply with your next available appointment.
>
> Practice ID: 42
> Specialty Code: family-medicine
`

	id, ok := ExtractPracticeID(body)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	code, ok := ExtractSpecialtyCode(body)
	require.True(t, ok)
	assert.Equal(t, "family-medicine", code)
}

func TestExtractRoutingLowercasedLabels(t *testing.T) {
	// Some mail clients rewrite the quoted request, lowercasing the labels.
	body := "> practice id: 42\n> specialty code: dermatology\n"

	id, ok := ExtractPracticeID(body)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	code, ok := ExtractSpecialtyCode(body)
	require.True(t, ok)
	assert.Equal(t, "dermatology", code)
}

func TestExtractRoutingMissing(t *testing.T) {
	_, ok := ExtractPracticeID("no quoted request here")
	assert.False(t, ok)
	_, ok = ExtractSpecialtyCode("no quoted request here")
	assert.False(t, ok)
}
