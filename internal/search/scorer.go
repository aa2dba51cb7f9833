package search

import (
	"fmt"
	"sort"
	"strings"
)

// Strategy names a result ordering.
type Strategy string

const (
	// StrategyDistance orders by ascending distance; unknown distance last.
	StrategyDistance Strategy = "distance"
	// StrategyAvailability orders by ascending wait; no-date candidates last.
	StrategyAvailability Strategy = "availability"
	// StrategyBalanced blends normalized wait and distance.
	StrategyBalanced Strategy = "balanced"
)

// ParseStrategy resolves a strategy name, defaulting to balanced.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyBalanced:
		return StrategyBalanced, nil
	case StrategyDistance:
		return StrategyDistance, nil
	case StrategyAvailability:
		return StrategyAvailability, nil
	default:
		return "", fmt.Errorf("search: unknown sort strategy %q", s)
	}
}

// Weights is the availability/distance split for the balanced strategy.
// Both call sites of the product use availability-favoring splits; the
// ratio is configuration, never a literal in the ranking code.
type Weights struct {
	Availability float64
	Distance     float64
}

// DefaultWeights is the canonical 60/40 split used by the appointment search.
var DefaultWeights = Weights{Availability: 0.6, Distance: 0.4}

// PracticeSearchWeights is the 70/30 split used by the practice-centric
// search entry point.
var PracticeSearchWeights = Weights{Availability: 0.7, Distance: 0.3}

// availabilityHorizonDays caps wait-time normalization: anything 30+ days
// out scores the same (worst) availability component.
const availabilityHorizonDays = 30.0

// Sort orders candidates in place under the given strategy. Ties keep input
// order. An empty slice is returned as-is; no normalization divisors are
// computed against it.
func Sort(candidates []Candidate, strategy Strategy, weights Weights) {
	if len(candidates) == 0 {
		return
	}

	switch strategy {
	case StrategyDistance:
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := &candidates[i], &candidates[j]
			if a.HasDistance() != b.HasDistance() {
				return a.HasDistance()
			}
			return a.Distance < b.Distance
		})

	case StrategyAvailability:
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := &candidates[i], &candidates[j]
			if (a.DaysUntil != nil) != (b.DaysUntil != nil) {
				return a.DaysUntil != nil
			}
			if a.DaysUntil == nil {
				return false
			}
			return *a.DaysUntil < *b.DaysUntil
		})

	default: // StrategyBalanced
		maxDistance := 0.0
		for i := range candidates {
			if c := &candidates[i]; c.HasDistance() && c.Distance > maxDistance {
				maxDistance = c.Distance
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := &candidates[i], &candidates[j]
			// Candidates without coordinates always rank behind those with.
			if a.HasDistance() != b.HasDistance() {
				return a.HasDistance()
			}
			return balancedScore(a, maxDistance, weights) < balancedScore(b, maxDistance, weights)
		})
	}
}

// balancedScore is the weighted composite; lower is better.
func balancedScore(c *Candidate, maxDistance float64, w Weights) float64 {
	distComponent := 1.0
	if c.HasDistance() {
		if maxDistance > 0 {
			distComponent = c.Distance / maxDistance
		} else {
			distComponent = 0
		}
	}

	availComponent := 1.0
	if c.DaysUntil != nil {
		days := float64(*c.DaysUntil)
		if days < 0 {
			days = 0
		}
		availComponent = days / availabilityHorizonDays
		if availComponent > 1 {
			availComponent = 1
		}
	}

	return w.Availability*availComponent + w.Distance*distComponent
}
