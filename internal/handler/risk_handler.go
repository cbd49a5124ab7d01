package handler

import (
	"encoding/json"
	"net/http"

	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/internal/risk"
)

// ─── Request DTO ────────────────────────────────────────────

// AssessRiskBody is the JSON body for POST /api/v1/routes/risk/assess.
// Historical fields are optional; absent means "no data".
type AssessRiskBody struct {
	RouteID                string   `json:"route_id"`
	TransferCount          int      `json:"transfer_count"`
	AverageDelay90Days     *float64 `json:"average_delay_90_days,omitempty"`
	DelayFrequency         *float64 `json:"delay_frequency,omitempty"`
	CancellationRate90Days *float64 `json:"cancellation_rate_90_days,omitempty"`
	AverageOccupancy       *float64 `json:"average_occupancy,omitempty"`
}

// RiskHandler handles standalone risk assessment requests.
type RiskHandler struct {
	scorer *risk.Scorer
}

// NewRiskHandler creates a risk handler.
func NewRiskHandler(scorer *risk.Scorer) *RiskHandler {
	return &RiskHandler{scorer: scorer}
}

// AssessRisk handles POST /api/v1/routes/risk/assess
//
// Scores one itinerary shape against its optional historical factors and
// returns the 1-10 risk value with level, description, and recommendations.
func (h *RiskHandler) AssessRisk(w http.ResponseWriter, r *http.Request) {
	var body AssessRiskBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body")
		return
	}

	var details []ErrorDetail
	if body.RouteID == "" {
		details = append(details, ErrorDetail{Path: "route_id", Message: "route_id is required"})
	}
	if body.TransferCount < 0 {
		details = append(details, ErrorDetail{Path: "transfer_count", Message: "transfer_count must be >= 0"})
	}
	if body.DelayFrequency != nil && (*body.DelayFrequency < 0 || *body.DelayFrequency > 1) {
		details = append(details, ErrorDetail{Path: "delay_frequency", Message: "delay_frequency must be in [0, 1]"})
	}
	if body.CancellationRate90Days != nil && (*body.CancellationRate90Days < 0 || *body.CancellationRate90Days > 1) {
		details = append(details, ErrorDetail{Path: "cancellation_rate_90_days", Message: "cancellation_rate_90_days must be in [0, 1]"})
	}
	if body.AverageOccupancy != nil && (*body.AverageOccupancy < 0 || *body.AverageOccupancy > 1) {
		details = append(details, ErrorDetail{Path: "average_occupancy", Message: "average_occupancy must be in [0, 1]"})
	}
	if body.AverageDelay90Days != nil && *body.AverageDelay90Days < 0 {
		details = append(details, ErrorDetail{Path: "average_delay_90_days", Message: "average_delay_90_days must be >= 0"})
	}
	if len(details) > 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid risk factors", details...)
		return
	}

	assessment := h.scorer.Assess(body.RouteID, model.RiskFactors{
		TransferCount:          body.TransferCount,
		AverageDelay90Days:     body.AverageDelay90Days,
		DelayFrequency:         body.DelayFrequency,
		CancellationRate90Days: body.CancellationRate90Days,
		AverageOccupancy:       body.AverageOccupancy,
	})

	writeJSON(w, http.StatusOK, assessment)
}
