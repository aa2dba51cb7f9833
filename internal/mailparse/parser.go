// Package mailparse classifies practice email replies and extracts the
// availability date or opt-out intent they carry.
package mailparse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
)

// Outcome classifies a reply.
type Outcome string

const (
	// OutcomeAvailability means a next-available date was extracted.
	OutcomeAvailability Outcome = "availability_update"
	// OutcomeNone means the practice stated it has no openings.
	OutcomeNone Outcome = "no_availability"
	// OutcomeUnsubscribe means the practice asked to stop receiving emails.
	OutcomeUnsubscribe Outcome = "unsubscribe"
	// OutcomeUnknown means no intent could be determined.
	OutcomeUnknown Outcome = "unknown"
)

// ErrNoRouting is returned when a reply carries no practice/specialty
// routing information in either its headers or its quoted body.
var ErrNoRouting = errors.New("mailparse: reply has no routing information")

// Result is the classification of a single reply body.
type Result struct {
	Outcome Outcome
	// NextAvailable is set only for OutcomeAvailability, normalized to
	// midnight UTC of the stated date.
	NextAvailable *time.Time
}

var (
	unsubscribePhrases = []string{
		"unsubscribe",
		"remove me",
		"remove us",
		"opt out",
		"opt-out",
		"stop emailing",
		"stop sending",
		"do not contact",
		"don't contact",
	}
	noAvailabilityPhrases = []string{
		"none",
		"no availability",
		"no openings",
		"no appointments available",
		"fully booked",
		"not accepting new patients",
		"not taking new patients",
		"booked solid",
	}

	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

	practiceIDRe    = regexp.MustCompile(`(?i)Practice ID:\s*(\d+)`)
	specialtyCodeRe = regexp.MustCompile(`(?i)Specialty Code:\s*([\w-]+)`)
)

// Parser classifies reply bodies. Safe for concurrent use.
type Parser struct {
	nl *when.Parser
}

// New builds a parser with the English date rules loaded. The slash and ISO
// formats are handled by explicit regexes instead of the library's common
// rules, which read slash dates as day-first.
func New() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	return &Parser{nl: w}
}

// Parse classifies body relative to the current time.
func (p *Parser) Parse(body string) Result {
	return p.ParseAt(body, time.Now().UTC())
}

// ParseAt classifies body relative to ref. Precedence is fixed: an opt-out
// request wins over everything, an explicit "no openings" statement wins
// over any date also present, then natural-language dates, then numeric
// date formats. A reply matching nothing is OutcomeUnknown, never an error.
func (p *Parser) ParseAt(body string, ref time.Time) Result {
	lower := strings.ToLower(body)

	for _, phrase := range unsubscribePhrases {
		if strings.Contains(lower, phrase) {
			return Result{Outcome: OutcomeUnsubscribe}
		}
	}
	for _, phrase := range noAvailabilityPhrases {
		if strings.Contains(lower, phrase) {
			return Result{Outcome: OutcomeNone}
		}
	}

	if t, ok := p.parseNaturalDate(body, ref); ok {
		return Result{Outcome: OutcomeAvailability, NextAvailable: &t}
	}
	if t, ok := parseNumericDate(body); ok {
		return Result{Outcome: OutcomeAvailability, NextAvailable: &t}
	}

	return Result{Outcome: OutcomeUnknown}
}

func (p *Parser) parseNaturalDate(body string, ref time.Time) (time.Time, bool) {
	r, err := p.nl.Parse(body, ref)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return midnightUTC(r.Time), true
}

// parseNumericDate recognizes MM/DD/YYYY and YYYY-MM-DD, rejecting
// calendar-impossible values like 02/30/2025.
func parseNumericDate(body string) (time.Time, bool) {
	if m := slashDateRe.FindStringSubmatch(body); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := calendarDate(year, month, day); ok {
			return t, true
		}
	}
	if m := isoDateRe.FindStringSubmatch(body); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if t, ok := calendarDate(year, month, day); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ExtractPracticeID pulls the practice id from the quoted request body.
func ExtractPracticeID(body string) (int64, bool) {
	m := practiceIDRe.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ExtractSpecialtyCode pulls the specialty code from the quoted request body.
func ExtractSpecialtyCode(body string) (string, bool) {
	m := specialtyCodeRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}
