// Package geo provides geographic utility functions for route weighting.
//
// All distance calculations use the Haversine formula on WGS-84 coordinates.
// Travel time for virtual (synthesized) connections is estimated with a
// constant ground speed plus a detour factor, since no schedule exists.
package geo

import (
	"math"

	"github.com/yakutia-transit/routesearch/internal/model"
)

// ─── Constants ──────────────────────────────────────────────

const (
	// EarthRadiusKm is the mean radius of Earth in kilometers.
	EarthRadiusKm = 6371.0

	// VirtualSpeedKmph is the assumed ground speed for synthesized
	// connections between virtual stops.
	VirtualSpeedKmph = 60.0

	// DetourFactor inflates straight-line estimates to account for real
	// road geometry.
	DetourFactor = 1.3
)

// ─── Distance ───────────────────────────────────────────────

// HaversineKm returns the great-circle distance between two points in kilometers.
//
// Complexity: O(1)
func HaversineKm(a, b model.Location) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLon := degToRad(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*sinLon*sinLon

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// VirtualTravelMinutes estimates travel time between two points in minutes
// at VirtualSpeedKmph with the detour factor applied. Returns at least 1.
//
// Complexity: O(1)
func VirtualTravelMinutes(a, b model.Location) float64 {
	minutes := HaversineKm(a, b) / VirtualSpeedKmph * 60.0 * DetourFactor
	if minutes < 1 {
		return 1
	}
	return minutes
}

// ─── Interpolation ──────────────────────────────────────────

// Midpoint returns the arithmetic midpoint of two coordinates. Good enough
// for filling a missing stop between two known neighbors on one route.
func Midpoint(a, b model.Location) model.Location {
	return model.Location{
		Lat: (a.Lat + b.Lat) / 2,
		Lon: (a.Lon + b.Lon) / 2,
	}
}

// EuclideanDeg returns the planar distance between two points in degrees.
// Used only for coarse nearest-stop selection, never for travel time.
func EuclideanDeg(a, b model.Location) float64 {
	dLat := a.Lat - b.Lat
	dLon := a.Lon - b.Lon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// ─── Helpers ────────────────────────────────────────────────

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
