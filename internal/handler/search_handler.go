package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/graph"
	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/internal/risk"
	"github.com/yakutia-transit/routesearch/internal/search"
	"github.com/yakutia-transit/routesearch/pkg/metrics"
)

const (
	minPassengers = 1
	maxPassengers = 9
	dateLayout    = "2006-01-02"
)

// SearchHandler handles route search HTTP requests.
type SearchHandler struct {
	log     *zap.Logger
	manager *graph.Manager
	finder  *search.Finder
	scorer  *risk.Scorer
	metrics *metrics.Metrics
	timeout time.Duration
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(log *zap.Logger, manager *graph.Manager, finder *search.Finder, scorer *risk.Scorer, m *metrics.Metrics, timeout time.Duration) *SearchHandler {
	return &SearchHandler{
		log:     log.Named("handler"),
		manager: manager,
		finder:  finder,
		scorer:  scorer,
		metrics: m,
		timeout: timeout,
	}
}

// routeView is a found itinerary annotated with its risk assessment.
type routeView struct {
	model.FoundRoute
	Risk model.RiskAssessment `json:"risk"`
}

// searchResponse is the success payload of GET /api/v1/routes/search.
type searchResponse struct {
	Success         bool        `json:"success"`
	Routes          []routeView `json:"routes"`
	Alternatives    []routeView `json:"alternatives,omitempty"`
	ExecutionTimeMs float64     `json:"execution_time_ms"`
	GraphAvailable  bool        `json:"graph_available"`
}

// SearchRoutes handles GET /api/v1/routes/search
//
// Query parameters:
//
//	from        origin city (required)
//	to          destination city (required)
//	date        travel date, YYYY-MM-DD (optional, defaults to today)
//	passengers  1..9 (optional, defaults to 1)
func (h *SearchHandler) SearchRoutes(w http.ResponseWriter, r *http.Request) {
	req, details := parseSearchRequest(r)
	if len(details) > 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid search parameters", details...)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	g, err := h.manager.GetGraph(ctx)
	if err != nil {
		code, status := graphErrorCode(err)
		h.log.Warn("graph unavailable for search", zap.String("code", code), zap.Error(err))
		h.metrics.SearchResults.WithLabelValues(code).Inc()
		writeError(w, status, code, "routing graph is not available")
		return
	}

	start := time.Now()
	result := h.finder.Search(ctx, g, h.manager.KnownCities(), req)
	h.metrics.SearchDuration.Observe(time.Since(start).Seconds())

	if !result.Success {
		h.metrics.SearchResults.WithLabelValues(result.ErrorCode).Inc()
		writeError(w, searchErrorStatus(result.ErrorCode), result.ErrorCode, result.ErrorMessage)
		return
	}
	h.metrics.SearchResults.WithLabelValues("OK").Inc()

	writeJSON(w, http.StatusOK, searchResponse{
		Success:         true,
		Routes:          h.annotate(result.Routes),
		Alternatives:    h.annotate(result.Alternatives),
		ExecutionTimeMs: result.ExecutionTimeMs,
		GraphAvailable:  result.GraphAvailable,
	})
}

// annotate attaches a risk assessment to each itinerary.
func (h *SearchHandler) annotate(routes []model.FoundRoute) []routeView {
	if len(routes) == 0 {
		return nil
	}
	out := make([]routeView, len(routes))
	for i, route := range routes {
		out[i] = routeView{
			FoundRoute: route,
			Risk:       h.scorer.AssessRoute(route, model.RiskFactors{}),
		}
	}
	return out
}

// parseSearchRequest validates query parameters and collects all findings
// instead of stopping at the first one.
func parseSearchRequest(r *http.Request) (model.SearchRequest, []ErrorDetail) {
	q := r.URL.Query()
	var details []ErrorDetail

	req := model.SearchRequest{
		FromCity:   q.Get("from"),
		ToCity:     q.Get("to"),
		Passengers: minPassengers,
		Date:       time.Now().UTC().Truncate(24 * time.Hour),
	}

	if req.FromCity == "" {
		details = append(details, ErrorDetail{Path: "from", Message: "origin city is required"})
	}
	if req.ToCity == "" {
		details = append(details, ErrorDetail{Path: "to", Message: "destination city is required"})
	}

	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			details = append(details, ErrorDetail{Path: "date", Message: "date must be in YYYY-MM-DD format"})
		} else {
			req.Date = d
		}
	}

	if raw := q.Get("passengers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minPassengers || n > maxPassengers {
			details = append(details, ErrorDetail{Path: "passengers", Message: "passengers must be an integer between 1 and 9"})
		} else {
			req.Passengers = n
		}
	}

	return req, details
}

// graphErrorCode maps manager failures onto search result codes.
func graphErrorCode(err error) (code string, status int) {
	if errors.Is(err, graph.ErrGraphInvalid) {
		return search.ErrCodeGraphInvalid, http.StatusServiceUnavailable
	}
	return search.ErrCodeGraphUnavailable, http.StatusServiceUnavailable
}

// searchErrorStatus maps finder result codes onto HTTP statuses.
func searchErrorStatus(code string) int {
	switch code {
	case search.ErrCodeStopsNotFound, search.ErrCodeRoutesNotFound:
		return http.StatusNotFound
	case search.ErrCodeGraphOutOfSync, search.ErrCodeGraphInvalid, search.ErrCodeGraphUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
