package cities

import (
	"errors"
	"strings"

	"github.com/lox/airaware/internal/forecast"
)

// ErrUnknownCity is returned when a city name is not in the registry.
var ErrUnknownCity = errors.New("unknown city")

// Demo holds the sample pollutant values shown for a city when no live
// reading is available.
type Demo struct {
	AQI  int     `json:"aqi"`
	PM25 float64 `json:"pm25"`
}

// City is a registry entry.
type City struct {
	forecast.CitySeed
	Demo Demo `json:"demo"`
	// MapOnly cities appear on the India map but not in forecast search.
	MapOnly bool `json:"mapOnly,omitempty"`
}

var registry = []City{
	{CitySeed: forecast.CitySeed{Name: "Chennai", State: "Tamil Nadu", Lat: 13.0827, Lng: 80.2707}, Demo: Demo{AQI: 92, PM25: 45}},
	{CitySeed: forecast.CitySeed{Name: "Delhi", State: "Delhi", Lat: 28.6139, Lng: 77.2090}, Demo: Demo{AQI: 156, PM25: 95}},
	{CitySeed: forecast.CitySeed{Name: "Mumbai", State: "Maharashtra", Lat: 19.0760, Lng: 72.8777}, Demo: Demo{AQI: 89, PM25: 42}},
	{CitySeed: forecast.CitySeed{Name: "Bangalore", State: "Karnataka", Lat: 12.9716, Lng: 77.5946}, Demo: Demo{AQI: 65, PM25: 32}},
	{CitySeed: forecast.CitySeed{Name: "Kolkata", State: "West Bengal", Lat: 22.5726, Lng: 88.3639}, Demo: Demo{AQI: 142, PM25: 78}},
	{CitySeed: forecast.CitySeed{Name: "Coimbatore", State: "Tamil Nadu", Lat: 11.0168, Lng: 76.9558}, Demo: Demo{AQI: 58, PM25: 22}},
	{CitySeed: forecast.CitySeed{Name: "Madurai", State: "Tamil Nadu", Lat: 9.9252, Lng: 78.1198}, Demo: Demo{AQI: 110, PM25: 60}},
	{CitySeed: forecast.CitySeed{Name: "Tiruchirappalli", State: "Tamil Nadu", Lat: 10.7905, Lng: 78.7047}, Demo: Demo{AQI: 135, PM25: 80}},
	{CitySeed: forecast.CitySeed{Name: "Salem", State: "Tamil Nadu", Lat: 11.6643, Lng: 78.1460}, Demo: Demo{AQI: 78, PM25: 34}},
	{CitySeed: forecast.CitySeed{Name: "Erode", State: "Tamil Nadu", Lat: 11.3410, Lng: 77.7172}, Demo: Demo{AQI: 48, PM25: 16}},
	{CitySeed: forecast.CitySeed{Name: "Puducherry", State: "Puducherry", Lat: 11.9416, Lng: 79.8083}, Demo: Demo{AQI: 65, PM25: 28}, MapOnly: true},
}

// All returns the forecast cities in registry order.
func All() []forecast.CitySeed {
	var out []forecast.CitySeed
	for _, c := range registry {
		if !c.MapOnly {
			out = append(out, c.CitySeed)
		}
	}
	return out
}

// Entries returns every registry entry, map-only points included.
func Entries() []City {
	out := make([]City, len(registry))
	copy(out, registry)
	return out
}

// Default is the city selected before the user picks one.
func Default() forecast.CitySeed {
	return registry[0].CitySeed
}

// Lookup finds a forecast city by name, ignoring case and surrounding space.
func Lookup(name string) (forecast.CitySeed, bool) {
	c, ok := lookup(name)
	if !ok || c.MapOnly {
		return forecast.CitySeed{}, false
	}
	return c.CitySeed, true
}

// DemoFor returns the sample values for any registry entry.
func DemoFor(name string) (Demo, bool) {
	c, ok := lookup(name)
	if !ok {
		return Demo{}, false
	}
	return c.Demo, true
}

func lookup(name string) (City, bool) {
	name = strings.TrimSpace(name)
	for _, c := range registry {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return City{}, false
}

// Search returns forecast cities whose name or state contains query,
// case-insensitively. A blank query matches nothing.
func Search(query string) []forecast.CitySeed {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var out []forecast.CitySeed
	for _, c := range All() {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.State), q) {
			out = append(out, c)
		}
	}
	return out
}

// MapPoint is a city marker for the India map.
type MapPoint struct {
	Location string  `json:"location"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	AQI      int     `json:"aqi"`
	PM25     float64 `json:"pm25"`
}

// MapPoints returns the demo map markers for every registry entry.
func MapPoints() []MapPoint {
	out := make([]MapPoint, 0, len(registry))
	for _, c := range registry {
		out = append(out, MapPoint{
			Location: c.Name,
			Lat:      c.Lat,
			Lng:      c.Lng,
			AQI:      c.Demo.AQI,
			PM25:     c.Demo.PM25,
		})
	}
	return out
}
