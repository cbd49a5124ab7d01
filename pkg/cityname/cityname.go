// Package cityname is the single source of truth for city-name handling:
// normalization, extraction of a city from a stop name, and the deterministic
// ids of virtual entities.
//
// Recovery and the graph builder both resolve cities through this package.
// If they ever disagreed, virtual stops created on one side would be
// unreachable from nodes created on the other.
package cityname

import (
	"regexp"
	"strings"
)

// ─── Prefixes ───────────────────────────────────────────────

const (
	// VirtualStopPrefix marks synthetic city-level stops.
	VirtualStopPrefix = "virtual-stop-"

	// VirtualRoutePrefix marks synthetic two-stop routes.
	VirtualRoutePrefix = "virtual-route-"
)

// cityMarker matches the Russian settlement marker "г. <name>".
var cityMarker = regexp.MustCompile(`г\.\s*([^,]+)`)

// facilityPrefixes are stop-name lead words that are not part of the city.
var facilityPrefixes = []string{"Аэропорт", "Вокзал", "Автостанция", "Остановка"}

var whitespace = regexp.MustCompile(`\s+`)

// ─── Normalization ──────────────────────────────────────────

// Normalize lowercases, trims, collapses internal whitespace, and folds
// "ё" to "е" so that "Олёкминск" and "олекминск" compare equal.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespace.ReplaceAllString(s, " ")
	return strings.ReplaceAll(s, "ё", "е")
}

// ─── Extraction ─────────────────────────────────────────────

// ExtractCity derives the city from a free-form stop name.
//
// Resolution order:
//  1. "г. <name>" marker anywhere in the string
//  2. last comma-separated segment
//  3. strip a facility prefix (Аэропорт/Вокзал/…) and take the final token
//  4. the whole name
func ExtractCity(stopName string) string {
	name := strings.TrimSpace(stopName)
	if name == "" {
		return ""
	}

	if m := cityMarker.FindStringSubmatch(name); m != nil {
		return strings.TrimSpace(m[1])
	}

	if idx := strings.LastIndex(name, ","); idx >= 0 {
		if seg := strings.TrimSpace(name[idx+1:]); seg != "" {
			return seg
		}
	}

	for _, prefix := range facilityPrefixes {
		if strings.HasPrefix(name, prefix) {
			rest := strings.TrimSpace(strings.TrimPrefix(name, prefix))
			if rest == "" {
				break
			}
			fields := strings.Fields(rest)
			return fields[len(fields)-1]
		}
	}

	return name
}

// ExtractNormalizedCity is ExtractCity followed by Normalize.
func ExtractNormalizedCity(stopName string) string {
	return Normalize(ExtractCity(stopName))
}

// CityOf resolves a stop's normalized city: an explicit city id wins,
// otherwise the city is extracted from the stop name. Recovery and the
// graph builder both resolve through this function; see the contract test.
func CityOf(cityID, stopName string) string {
	if strings.TrimSpace(cityID) != "" {
		return Normalize(cityID)
	}
	return ExtractNormalizedCity(stopName)
}

// ─── Deterministic ids ──────────────────────────────────────

// VirtualStopID returns the deterministic id of the virtual stop for a city.
// Two spellings of the same city always map to the same id.
func VirtualStopID(city string) string {
	return VirtualStopPrefix + strings.ReplaceAll(Normalize(city), " ", "-")
}

// VirtualRouteID returns the deterministic id of the virtual route between
// two stops.
func VirtualRouteID(fromStopID, toStopID string) string {
	return VirtualRoutePrefix + fromStopID + "-" + toStopID
}

// IsVirtualStopID reports whether the id denotes a virtual stop.
func IsVirtualStopID(stopID string) bool {
	return strings.HasPrefix(stopID, VirtualStopPrefix)
}

// IsVirtualRouteID reports whether the id denotes a virtual route.
func IsVirtualRouteID(routeID string) bool {
	return strings.HasPrefix(routeID, VirtualRoutePrefix)
}
