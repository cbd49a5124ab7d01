// Package provider contains the dataset producers: the primary transport
// catalog in PostgreSQL and the static demo fallback.
package provider

import (
	"context"
	"fmt"

	"github.com/yakutia-transit/routesearch/internal/model"
)

// Provider produces raw datasets for the orchestrator.
type Provider interface {
	// Name identifies the provider in logs and dataset provenance.
	Name() string

	// Available reports whether a load attempt is worth making. It must be
	// cheap: a handshake, not a full fetch.
	Available(ctx context.Context) bool

	// Load retrieves the three collections (stops, routes, flights) and maps
	// them into a dataset.
	Load(ctx context.Context) (*model.Dataset, error)
}

// ─── Errors ─────────────────────────────────────────────────

// FetchErrorKind classifies a failed catalog fetch.
type FetchErrorKind string

const (
	FetchErrConnection FetchErrorKind = "connection"
	FetchErrTimeout    FetchErrorKind = "timeout"
	FetchErrInvalid    FetchErrorKind = "invalid"
)

// FetchError is returned by the primary provider when the catalog cannot be
// read. The orchestrator treats every kind as transient and falls back.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("catalog fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
