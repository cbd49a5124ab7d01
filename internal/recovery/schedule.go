package recovery

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/yakutia-transit/routesearch/internal/model"
)

// ─── Templates ──────────────────────────────────────────────

// timeWindow is a departure window in whole hours of the day.
type timeWindow struct {
	startHour int
	endHour   int
}

// scheduleTemplate drives flight synthesis for a route without schedules.
type scheduleTemplate struct {
	flightsPerDay   int
	windows         []timeWindow
	durationMinutes int
}

// scheduleTemplates keys synthesis parameters by transport type. Windows are
// rotated round-robin across the day's flights.
var scheduleTemplates = map[model.TransportType]scheduleTemplate{
	model.TransportAirplane: {2, []timeWindow{{8, 10}, {16, 18}}, 120},
	model.TransportBus:      {4, []timeWindow{{6, 8}, {10, 12}, {14, 16}, {18, 20}}, 240},
	model.TransportTrain:    {3, []timeWindow{{7, 9}, {13, 15}, {19, 21}}, 180},
	model.TransportFerry:    {2, []timeWindow{{9, 11}, {15, 17}}, 180},
	model.TransportTaxi:     {1, []timeWindow{{0, 24}}, 60},
	model.TransportUnknown:  {2, []timeWindow{{9, 11}, {15, 17}}, 120},
}

// templateFor returns the synthesis template for a transport type.
func templateFor(t model.TransportType) scheduleTemplate {
	if tpl, ok := scheduleTemplates[t]; ok {
		return tpl
	}
	return scheduleTemplates[model.TransportUnknown]
}

// TemplateDurationMinutes exposes the per-type default leg duration; the
// graph builder falls back to it when a route has neither flights nor an
// explicit duration.
func TemplateDurationMinutes(t model.TransportType) float64 {
	return float64(templateFor(t).durationMinutes)
}

// ─── Synthesis ──────────────────────────────────────────────

// scheduleDays is how far ahead synthesized schedules extend.
const scheduleDays = 365

// synthesizeRouteFlights generates a year of flights for one route.
//
// Departure times are jittered inside the template window by a generator
// seeded from the route id, so re-running synthesis for the same route
// reproduces the same schedule.
func synthesizeRouteFlights(route *model.Route, from time.Time) []model.Flight {
	if len(route.Stops) < 2 {
		return nil
	}

	tpl := templateFor(route.TransportType)
	rng := rand.New(rand.NewSource(int64(routeSeed(route.ID))))

	day0 := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	duration := time.Duration(tpl.durationMinutes) * time.Minute

	flights := make([]model.Flight, 0, scheduleDays*tpl.flightsPerDay*(len(route.Stops)-1))
	for day := 0; day < scheduleDays; day++ {
		date := day0.AddDate(0, 0, day)
		for slot := 0; slot < tpl.flightsPerDay; slot++ {
			window := tpl.windows[slot%len(tpl.windows)]
			spanMinutes := (window.endHour - window.startHour) * 60
			offset := 0
			if spanMinutes > 0 {
				offset = rng.Intn(spanMinutes)
			}
			departure := date.
				Add(time.Duration(window.startHour) * time.Hour).
				Add(time.Duration(offset) * time.Minute)

			// One flight per adjacent stop pair per slot.
			for i := 0; i < len(route.Stops)-1; i++ {
				from, to := route.Stops[i], route.Stops[i+1]
				flights = append(flights, model.Flight{
					ID:            syntheticFlightID(route.ID, day, slot, i),
					RouteID:       route.ID,
					FromStopID:    from,
					ToStopID:      to,
					Departure:     departure,
					Arrival:       departure.Add(duration),
					TransportType: route.TransportType,
				})
			}
		}
	}
	return flights
}

// syntheticFlightID is deterministic so re-synthesis is a no-op at the id level.
func syntheticFlightID(routeID string, day, slot, leg int) string {
	return fmt.Sprintf("%s-d%03d-s%d-l%d", routeID, day, slot, leg)
}

func routeSeed(routeID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(routeID))
	return h.Sum32()
}
