package handler

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/yakutia-transit/routesearch/internal/graph"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// CityHandler lists the cities reachable through the current graph.
type CityHandler struct {
	manager *graph.Manager
}

// NewCityHandler creates a city handler.
func NewCityHandler(manager *graph.Manager) *CityHandler {
	return &CityHandler{manager: manager}
}

// citiesResponse is the payload of GET /api/v1/cities.
type citiesResponse struct {
	Cities   []string `json:"cities"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Total    int      `json:"total"`
}

// ListCities handles GET /api/v1/cities
//
// Returns the normalized city names present in the current dataset, sorted,
// paginated with page (1-based) and page_size (max 100).
func (h *CityHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	page, pageSize, details := parsePagination(r)
	if len(details) > 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid pagination parameters", details...)
		return
	}

	known := h.manager.KnownCities()
	cities := make([]string, 0, len(known))
	for c := range known {
		cities = append(cities, c)
	}
	sort.Strings(cities)

	total := len(cities)
	from := (page - 1) * pageSize
	if from > total {
		from = total
	}
	to := from + pageSize
	if to > total {
		to = total
	}

	writeJSON(w, http.StatusOK, citiesResponse{
		Cities:   cities[from:to],
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

func parsePagination(r *http.Request) (page, pageSize int, details []ErrorDetail) {
	q := r.URL.Query()
	page, pageSize = 1, defaultPageSize

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			details = append(details, ErrorDetail{Path: "page", Message: "page must be a positive integer"})
		} else {
			page = n
		}
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			details = append(details, ErrorDetail{Path: "page_size", Message: "page_size must be between 1 and 100"})
		} else {
			pageSize = n
		}
	}
	return page, pageSize, details
}
