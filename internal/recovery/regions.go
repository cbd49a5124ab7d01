package recovery

import "github.com/yakutia-transit/routesearch/internal/model"

// RegionCity is one settlement from the canonical region table. The table is
// the ground truth for virtual-stop generation: every listed city ends up as
// a node in the graph whether or not the catalog mentions it.
type RegionCity struct {
	Name     string
	Location model.Location
}

// regionCities covers the settlements of the republic served by the network.
// Coordinates are canonical town centers.
var regionCities = []RegionCity{
	{"Якутск", model.Location{Lat: 62.03, Lon: 129.73}},
	{"Нерюнгри", model.Location{Lat: 56.66, Lon: 124.72}},
	{"Мирный", model.Location{Lat: 62.54, Lon: 113.96}},
	{"Ленск", model.Location{Lat: 60.72, Lon: 114.92}},
	{"Алдан", model.Location{Lat: 58.61, Lon: 125.39}},
	{"Удачный", model.Location{Lat: 66.42, Lon: 112.40}},
	{"Олёкминск", model.Location{Lat: 60.37, Lon: 120.42}},
	{"Вилюйск", model.Location{Lat: 63.75, Lon: 121.63}},
	{"Верхоянск", model.Location{Lat: 67.55, Lon: 133.39}},
	{"Среднеколымск", model.Location{Lat: 67.46, Lon: 153.71}},
	{"Томмот", model.Location{Lat: 58.96, Lon: 126.28}},
	{"Покровск", model.Location{Lat: 61.48, Lon: 129.15}},
	{"Нюрба", model.Location{Lat: 63.28, Lon: 118.33}},
	{"Сунтар", model.Location{Lat: 62.14, Lon: 117.63}},
	{"Жиганск", model.Location{Lat: 66.77, Lon: 123.37}},
	{"Тикси", model.Location{Lat: 71.64, Lon: 128.87}},
	{"Черский", model.Location{Lat: 68.75, Lon: 161.33}},
	{"Усть-Нера", model.Location{Lat: 64.57, Lon: 143.24}},
	{"Хандыга", model.Location{Lat: 62.65, Lon: 135.60}},
	{"Майя", model.Location{Lat: 61.73, Lon: 130.28}},
	{"Амга", model.Location{Lat: 60.90, Lon: 131.97}},
	{"Бердигестях", model.Location{Lat: 62.10, Lon: 126.70}},
	{"Сангар", model.Location{Lat: 63.92, Lon: 127.47}},
	{"Батагай", model.Location{Lat: 67.66, Lon: 134.63}},
	{"Зырянка", model.Location{Lat: 65.74, Lon: 150.85}},
	{"Саскылах", model.Location{Lat: 71.92, Lon: 114.08}},
	{"Оленёк", model.Location{Lat: 68.50, Lon: 112.43}},
	{"Депутатский", model.Location{Lat: 69.30, Lon: 139.90}},
	{"Чурапча", model.Location{Lat: 62.00, Lon: 132.43}},
	{"Намцы", model.Location{Lat: 62.72, Lon: 129.67}},
}

// RegionCities returns a copy of the canonical region table.
func RegionCities() []RegionCity {
	out := make([]RegionCity, len(regionCities))
	copy(out, regionCities)
	return out
}

// RegionCityCount is the size of the canonical region table.
func RegionCityCount() int {
	return len(regionCities)
}
