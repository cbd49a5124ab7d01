// Package quality scores datasets before they are allowed near the graph
// builder. The validator is a pure function of the dataset with no I/O and
// no failure modes; an empty dataset simply scores zero.
package quality

import (
	"math"
	"time"

	"github.com/yakutia-transit/routesearch/internal/model"
)

// ─── Thresholds ─────────────────────────────────────────────

const (
	// DefaultThresholdReal is the minimum overall score for REAL mode.
	DefaultThresholdReal = 90

	// DefaultThresholdRecovery is the minimum overall score for RECOVERY
	// mode; anything below falls to MOCK.
	DefaultThresholdRecovery = 50

	// coordinatesThreshold and schedulesThreshold gate the per-category
	// recovery recommendations.
	coordinatesThreshold = 50
	schedulesThreshold   = 50
)

// Category weights. Routes dominate: a dataset of well-formed routes with
// thin schedules is recoverable, the reverse is not.
const (
	weightRoutes      = 0.4
	weightStops       = 0.3
	weightCoordinates = 0.2
	weightSchedules   = 0.1
)

// Recovery recommendations emitted when a category scores below its threshold.
const (
	RecommendRecoverCoordinates = "recover_coordinates"
	RecommendGenerateSchedules  = "generate_schedules"
	RecommendFillMissingNames   = "fill_missing_names"
)

// ─── Validator ──────────────────────────────────────────────

// Validator computes quality reports and mode decisions.
type Validator struct {
	thresholdReal     int
	thresholdRecovery int
}

// NewValidator creates a validator with the given mode thresholds.
func NewValidator(thresholdReal, thresholdRecovery int) *Validator {
	if thresholdReal <= 0 {
		thresholdReal = DefaultThresholdReal
	}
	if thresholdRecovery <= 0 {
		thresholdRecovery = DefaultThresholdRecovery
	}
	return &Validator{
		thresholdReal:     thresholdReal,
		thresholdRecovery: thresholdRecovery,
	}
}

// Validate scores the dataset across the four weighted categories.
//
//	overall = round(0.4·routes + 0.3·stops + 0.2·coordinates + 0.1·schedules)
func (v *Validator) Validate(d *model.Dataset) *model.QualityReport {
	report := &model.QualityReport{
		ValidatedAt: time.Now().UTC(),
		Details:     make(map[string]float64),
	}

	report.RoutesScore = v.scoreRoutes(d, report)
	report.StopsScore = v.scoreStops(d, report)
	report.CoordinatesScore = v.scoreCoordinates(d)
	report.SchedulesScore = v.scoreSchedules(d)

	overall := weightRoutes*float64(report.RoutesScore) +
		weightStops*float64(report.StopsScore) +
		weightCoordinates*float64(report.CoordinatesScore) +
		weightSchedules*float64(report.SchedulesScore)
	report.OverallScore = int(math.Round(overall))

	if report.CoordinatesScore < coordinatesThreshold {
		report.Recommendations = append(report.Recommendations, RecommendRecoverCoordinates)
	}
	if report.SchedulesScore < schedulesThreshold {
		report.Recommendations = append(report.Recommendations, RecommendGenerateSchedules)
	}
	if report.StopsScore < 100 {
		report.Recommendations = append(report.Recommendations, RecommendFillMissingNames)
	}

	return report
}

// ModeFor maps an overall score to a data mode.
func (v *Validator) ModeFor(overallScore int) model.DataMode {
	switch {
	case overallScore >= v.thresholdReal:
		return model.ModeReal
	case overallScore >= v.thresholdRecovery:
		return model.ModeRecovery
	default:
		return model.ModeMock
	}
}

// ShouldRecover reports whether the score lands in the RECOVERY band.
func (v *Validator) ShouldRecover(report *model.QualityReport) bool {
	return v.ModeFor(report.OverallScore) == model.ModeRecovery
}

// ─── Category scores ────────────────────────────────────────

// scoreRoutes: % of routes with a non-empty id, name, transport type, and at
// least two stops.
func (v *Validator) scoreRoutes(d *model.Dataset, report *model.QualityReport) int {
	if len(d.Routes) == 0 {
		return 0
	}
	valid := 0
	for _, r := range d.Routes {
		if r.ID == "" {
			markMissing(report, "route.id")
			continue
		}
		if r.Name == "" {
			markMissing(report, "route.name")
			continue
		}
		if r.TransportType == "" {
			markMissing(report, "route.transport_type")
			continue
		}
		if len(r.Stops) < 2 {
			markMissing(report, "route.stops")
			continue
		}
		valid++
	}
	report.Details["routes_valid"] = float64(valid)
	report.Details["routes_total"] = float64(len(d.Routes))
	return percent(valid, len(d.Routes))
}

// scoreStops: % of stops with a non-empty id and name.
func (v *Validator) scoreStops(d *model.Dataset, report *model.QualityReport) int {
	if len(d.Stops) == 0 {
		return 0
	}
	valid := 0
	for _, s := range d.Stops {
		if s.ID == "" {
			markMissing(report, "stop.id")
			continue
		}
		if s.Name == "" {
			markMissing(report, "stop.name")
			continue
		}
		valid++
	}
	report.Details["stops_valid"] = float64(valid)
	report.Details["stops_total"] = float64(len(d.Stops))
	return percent(valid, len(d.Stops))
}

// scoreCoordinates: % of stops with in-range WGS-84 coordinates.
func (v *Validator) scoreCoordinates(d *model.Dataset) int {
	if len(d.Stops) == 0 {
		return 0
	}
	valid := 0
	for _, s := range d.Stops {
		if s.Location != nil && s.Location.InRange() {
			valid++
		}
	}
	return percent(valid, len(d.Stops))
}

// scoreSchedules: % of routes referenced by at least one flight.
func (v *Validator) scoreSchedules(d *model.Dataset) int {
	if len(d.Routes) == 0 {
		return 0
	}
	scheduled := make(map[string]bool, len(d.Routes))
	for _, f := range d.Flights {
		scheduled[f.RouteID] = true
	}
	valid := 0
	for _, r := range d.Routes {
		if scheduled[r.ID] {
			valid++
		}
	}
	return percent(valid, len(d.Routes))
}

// ─── Helpers ────────────────────────────────────────────────

func percent(valid, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(valid) / float64(total) * 100))
}

func markMissing(report *model.QualityReport, field string) {
	for _, f := range report.MissingFields {
		if f == field {
			return
		}
	}
	report.MissingFields = append(report.MissingFields, field)
}
