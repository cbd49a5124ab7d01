// Package orchestrator drives the adaptive data pipeline: provider
// selection, cache-first retrieval, quality validation, recovery, and the
// fallback ladder. Its single public entry point is LoadData.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/datacache"
	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/internal/provider"
	"github.com/yakutia-transit/routesearch/internal/quality"
	"github.com/yakutia-transit/routesearch/internal/recovery"
	"github.com/yakutia-transit/routesearch/pkg/metrics"
)

// Closed set of reasons attached to non-fatal degradation logs.
const (
	reasonPrimaryUnavailable = "primary_unavailable"
	reasonPrimaryLoadFailed  = "primary_load_failed"
	reasonRecoveryRegressed  = "recovery_regressed"
	reasonQualityTooLow      = "quality_too_low"
)

// Orchestrator owns the load pipeline.
type Orchestrator struct {
	log       *zap.Logger
	primary   provider.Provider
	fallback  provider.Provider
	validator *quality.Validator
	recovery  *recovery.Service
	cache     *datacache.DatasetCache
	metrics   *metrics.Metrics

	cacheKey string
	cacheTTL time.Duration

	// Cached datasets from previous releases may carry ids generated under
	// older rules; the first load of a process drops them.
	invalidateOnce sync.Once
}

// New wires the orchestrator.
func New(
	log *zap.Logger,
	primary, fallback provider.Provider,
	validator *quality.Validator,
	rec *recovery.Service,
	cache *datacache.DatasetCache,
	m *metrics.Metrics,
	cacheKey string,
	cacheTTL time.Duration,
) *Orchestrator {
	return &Orchestrator{
		log:       log.Named("orchestrator"),
		primary:   primary,
		fallback:  fallback,
		validator: validator,
		recovery:  rec,
		cache:     cache,
		metrics:   m,
		cacheKey:  cacheKey,
		cacheTTL:  cacheTTL,
	}
}

// LoadData runs the full decision tree and returns a dataset ready for the
// graph builder. It fails only when even the fallback cannot be loaded.
func (o *Orchestrator) LoadData(ctx context.Context) (*model.Dataset, error) {
	o.invalidateOnce.Do(func() {
		o.cache.Invalidate(ctx, o.cacheKey)
		o.log.Info("dropped previously cached dataset on first load")
	})

	if cached := o.cache.Get(ctx, o.cacheKey); cached != nil {
		o.log.Info("dataset served from cache",
			zap.String("mode", string(cached.Mode)),
			zap.Int("quality", cached.Quality),
		)
		o.metrics.DatasetLoads.WithLabelValues(string(cached.Mode), "true").Inc()
		return cached, nil
	}

	selected := o.selectProvider(ctx)
	d, err := selected.Load(ctx)
	if err != nil {
		o.log.Warn("provider load failed, switching to fallback",
			zap.String("provider", selected.Name()),
			zap.String("reason", reasonPrimaryLoadFailed),
			zap.Error(err),
		)
		o.metrics.Errors.WithLabelValues(selected.Name(), reasonPrimaryLoadFailed).Inc()
		selected = o.fallback
		if d, err = o.fallback.Load(ctx); err != nil {
			return nil, fmt.Errorf("load data: fallback failed: %w", err)
		}
	}

	report := o.validator.Validate(d)
	mode := o.validator.ModeFor(report.OverallScore)
	o.log.Info("dataset validated",
		zap.Int("overall", report.OverallScore),
		zap.Int("routes", report.RoutesScore),
		zap.Int("stops", report.StopsScore),
		zap.Int("coordinates", report.CoordinatesScore),
		zap.Int("schedules", report.SchedulesScore),
		zap.String("mode", string(mode)),
	)

	switch {
	case mode == model.ModeRecovery:
		d = o.runRecovery(ctx, d, report)

	case mode == model.ModeMock && selected.Name() != o.fallback.Name():
		o.log.Warn("dataset quality below recovery band, using fallback",
			zap.String("reason", reasonQualityTooLow),
			zap.Int("overall", report.OverallScore),
		)
		o.metrics.Errors.WithLabelValues(selected.Name(), reasonQualityTooLow).Inc()
		fb, err := o.fallback.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load data: fallback failed: %w", err)
		}
		// Recovery still runs so virtual stops and the mesh exist.
		d, _ = o.recovery.Recover(fb, syntheticReport())
	}

	// Demo data stays labeled MOCK no matter how well it scores.
	if d.Source == o.fallback.Name() {
		mode = model.ModeMock
	}
	d.Mode = mode
	d.Quality = o.validator.Validate(d).OverallScore
	d.LoadedAt = time.Now().UTC()

	o.cache.Set(ctx, o.cacheKey, d, o.cacheTTL)
	o.metrics.DatasetLoads.WithLabelValues(string(mode), "false").Inc()
	o.metrics.QualityScore.Set(float64(d.Quality))

	return d, nil
}

// selectProvider prefers the primary catalog when its handshake succeeds.
func (o *Orchestrator) selectProvider(ctx context.Context) provider.Provider {
	if o.primary.Available(ctx) {
		return o.primary
	}
	o.log.Warn("primary provider unavailable",
		zap.String("reason", reasonPrimaryUnavailable))
	o.metrics.Errors.WithLabelValues(o.primary.Name(), reasonPrimaryUnavailable).Inc()
	return o.fallback
}

// runRecovery applies the recovery pipeline and keeps the result only when
// re-validation confirms it did not regress below the recovery band.
func (o *Orchestrator) runRecovery(ctx context.Context, d *model.Dataset, report *model.QualityReport) *model.Dataset {
	recovered, ops := o.recovery.Recover(d, report)
	recheck := o.validator.Validate(recovered)
	if o.validator.ModeFor(recheck.OverallScore) == model.ModeMock {
		o.log.Warn("recovered dataset still below recovery band, using fallback",
			zap.String("reason", reasonRecoveryRegressed),
			zap.Int("overall", recheck.OverallScore),
		)
		o.metrics.Errors.WithLabelValues("recovery", reasonRecoveryRegressed).Inc()
		fb, err := o.fallback.Load(ctx)
		if err != nil {
			// Keep the best dataset we have.
			return recovered
		}
		return fb
	}
	o.log.Info("recovery accepted",
		zap.Int("overall", recheck.OverallScore),
		zap.Int("virtual_stops", ops.VirtualStopsCreated),
		zap.Int("mesh_routes", ops.MeshRoutesCreated),
	)
	return recovered
}

// syntheticReport marks a dataset as complete so recovery only adds the
// virtual layer on top of it.
func syntheticReport() *model.QualityReport {
	return &model.QualityReport{
		OverallScore:     100,
		RoutesScore:      100,
		StopsScore:       100,
		CoordinatesScore: 100,
		SchedulesScore:   100,
		ValidatedAt:      time.Now().UTC(),
	}
}
