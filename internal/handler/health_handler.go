package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/yakutia-transit/routesearch/internal/graph"
	"github.com/yakutia-transit/routesearch/pkg/cache"
	"github.com/yakutia-transit/routesearch/pkg/db"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	pool    *pgxpool.Pool
	redis   *redis.Client
	manager *graph.Manager
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(pool *pgxpool.Pool, rdb *redis.Client, manager *graph.Manager) *HealthHandler {
	return &HealthHandler{pool: pool, redis: rdb, manager: manager}
}

// healthResponse is the payload of GET /health.
type healthResponse struct {
	Status string             `json:"status"`
	Checks map[string]string  `json:"checks"`
	Graph  graph.ManagerStats `json:"graph"`
}

// Health handles GET /health
//
// Reports dependency reachability plus graph lifecycle state. Dependencies
// being down degrades the status but does not fail the endpoint; search can
// keep serving from the published graph.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"postgres": "ok",
		"redis":    "ok",
	}
	degraded := false

	if h.pool == nil {
		checks["postgres"] = "not configured"
		degraded = true
	} else if err := db.HealthCheck(ctx, h.pool); err != nil {
		checks["postgres"] = err.Error()
		degraded = true
	}
	if h.redis == nil {
		checks["redis"] = "not configured"
		degraded = true
	} else if err := cache.HealthCheck(ctx, h.redis); err != nil {
		checks["redis"] = err.Error()
		degraded = true
	}

	stats := h.manager.Stats()
	status := "ok"
	if degraded {
		status = "degraded"
	}
	if stats.Status != graph.StatusReady && stats.Status != graph.StatusStale {
		status = "starting"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status: status,
		Checks: checks,
		Graph:  stats,
	})
}

// Liveness handles GET /health/live. The process is up.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness handles GET /health/ready
//
// Ready means a graph snapshot is published and search can answer. A stale
// snapshot still serves.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	status := h.manager.Status()
	if status == graph.StatusReady || status == graph.StatusStale {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "graph": string(status)})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "graph": string(status)})
}
