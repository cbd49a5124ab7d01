// Package risk annotates found routes with a 1–10 risk value derived from
// the itinerary shape and optional historical factors. The scorer is a pure
// function: same inputs, same score.
package risk

import (
	"math"

	"github.com/yakutia-transit/routesearch/internal/model"
)

// ─── Contribution weights ───────────────────────────────────

const (
	transferWeight     = 0.8
	delayCapPoints     = 3.0
	delayDivisor       = 20.0
	delayFreqWeight    = 2.0
	cancellationWeight = 3.0
	occupancyThreshold = 0.9
	occupancyPenalty   = 1.0

	minScore = 1.0
	maxScore = 10.0
)

// Level buckets with fixed descriptions.
var levels = []struct {
	max         float64
	level       string
	description string
}{
	{2, "very-low", "Direct, reliable connection with minimal disruption history."},
	{4, "low", "Reliable route; minor delays are possible."},
	{6, "medium", "Some transfers or a history of delays; allow spare time."},
	{8, "high", "Multiple transfers or frequent disruptions; tight connections are risky."},
	{math.Inf(1), "very-high", "Fragile itinerary; disruptions are likely and rebooking may be needed."},
}

// Scorer computes risk assessments.
type Scorer struct{}

// NewScorer creates a risk scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Assess scores one route against its factors.
//
// value = 1 + 0.8·transfers + min(3, avgDelay/20) + 2·delayFreq
//
//	+ 3·cancellationRate + (occupancy > 0.9 ? 1 : 0)
//
// clamped to [1, 10] and rounded to one decimal.
func (s *Scorer) Assess(routeID string, factors model.RiskFactors) model.RiskAssessment {
	value := minScore

	value += float64(factors.TransferCount) * transferWeight
	if factors.AverageDelay90Days != nil {
		value += math.Min(delayCapPoints, *factors.AverageDelay90Days/delayDivisor)
	}
	if factors.DelayFrequency != nil {
		value += *factors.DelayFrequency * delayFreqWeight
	}
	if factors.CancellationRate90Days != nil {
		value += *factors.CancellationRate90Days * cancellationWeight
	}
	if factors.AverageOccupancy != nil && *factors.AverageOccupancy > occupancyThreshold {
		value += occupancyPenalty
	}

	value = math.Min(maxScore, math.Max(minScore, value))
	value = math.Round(value*10) / 10

	level, description := bucketFor(value)

	return model.RiskAssessment{
		RouteID: routeID,
		RiskScore: model.RiskScore{
			Value:       value,
			Level:       level,
			Description: description,
		},
		Factors:         factors,
		Recommendations: recommendations(factors),
	}
}

// AssessRoute derives factors from a found itinerary and scores it.
func (s *Scorer) AssessRoute(route model.FoundRoute, factors model.RiskFactors) model.RiskAssessment {
	factors.TransferCount = route.TransferCount
	return s.Assess(route.RouteID, factors)
}

func bucketFor(value float64) (string, string) {
	for _, b := range levels {
		if value <= b.max {
			return b.level, b.description
		}
	}
	last := levels[len(levels)-1]
	return last.level, last.description
}

func recommendations(f model.RiskFactors) []string {
	var out []string
	if f.TransferCount >= 2 {
		out = append(out, "Consider an itinerary with fewer transfers.")
	}
	if f.AverageDelay90Days != nil && *f.AverageDelay90Days >= 30 {
		out = append(out, "This connection is frequently delayed; plan buffer time.")
	}
	if f.CancellationRate90Days != nil && *f.CancellationRate90Days >= 0.1 {
		out = append(out, "Cancellations are common on this route; check status before departure.")
	}
	if f.AverageOccupancy != nil && *f.AverageOccupancy > occupancyThreshold {
		out = append(out, "Seats fill up quickly; book in advance.")
	}
	return out
}
