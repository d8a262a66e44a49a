package dashboard

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/lox/airaware/internal/aqi"
	"github.com/lox/airaware/internal/cities"
	"github.com/lox/airaware/internal/forecast"
	"github.com/lox/airaware/internal/liveaqi"
	"github.com/lox/airaware/internal/metrics"
)

const (
	SourceLive = "live"
	SourceMock = "mock"
)

// Backend is the live data source. *liveaqi.Client implements it.
type Backend interface {
	Fetch(ctx context.Context, location string) (*liveaqi.Reading, error)
	FetchMap(ctx context.Context) ([]cities.MapPoint, error)
}

// Pollutants are the concentrations reported alongside an AQI value.
// Nil means the value is unknown.
type Pollutants struct {
	PM25 *float64 `json:"pm25"`
	PM10 *float64 `json:"pm10"`
	O3   *float64 `json:"o3"`
	NO2  *float64 `json:"no2"`
	SO2  *float64 `json:"so2"`
	CO   *float64 `json:"co"`
}

// CurrentReport is the current air quality for one location.
type CurrentReport struct {
	Location    string   `json:"location"`
	Source      string   `json:"source"`
	AQI         int      `json:"aqi"`
	Band        aqi.Band `json:"band"`
	Tips        []string `json:"tips"`
	LastUpdated string   `json:"lastUpdated"`
	Pollutants
}

// ForecastDay is a forecast day with its classification attached.
type ForecastDay struct {
	forecast.Day
	Band   aqi.Band `json:"band"`
	Advice string   `json:"advice"`
}

// ForecastReport is a 5-day forecast for one city.
type ForecastReport struct {
	City   forecast.CitySeed `json:"city"`
	Source string            `json:"source"`
	Days   []ForecastDay     `json:"days"`
}

// MapPoint is a classified India map marker.
type MapPoint struct {
	cities.MapPoint
	Band aqi.Band `json:"band"`
}

// Service answers dashboard queries, preferring the live backend and falling
// back to generated data when it is unavailable.
type Service struct {
	backend Backend
	loc     *time.Location
	base    forecast.BaseSource
	now     func() time.Time
}

// NewService creates a service. base selects how the fallback generator draws
// its base values; nil means forecast.SeededBase.
func NewService(backend Backend, loc *time.Location, base forecast.BaseSource) *Service {
	if base == nil {
		base = forecast.SeededBase{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{backend: backend, loc: loc, base: base, now: time.Now}
}

// Today returns the current calendar date in the service's timezone.
func (s *Service) Today() time.Time {
	return s.now().In(s.loc)
}

// Forecast returns the 5-day forecast for city starting at start.
func (s *Service) Forecast(ctx context.Context, city forecast.CitySeed, start time.Time) (*ForecastReport, error) {
	if s.backend != nil {
		r, err := s.backend.Fetch(ctx, city.Name)
		switch {
		case err != nil:
			log.Printf("dashboard: live forecast for %s unavailable, using mock: %v", city.Name, err)
		case len(r.Forecast) == 0:
			log.Printf("dashboard: live reading for %s has no forecast, using mock", city.Name)
		default:
			if days, ok := liveDays(r.Forecast, start); ok {
				return &ForecastReport{City: city, Source: SourceLive, Days: days}, nil
			}
			log.Printf("dashboard: live forecast for %s has invalid entries, using mock", city.Name)
		}
	}

	metrics.Fallbacks.WithLabelValues("forecast").Inc()
	gen := forecast.Generate(city, start, forecast.WithBaseSource(s.base))
	days := make([]ForecastDay, 0, len(gen))
	for _, d := range gen {
		days = append(days, classifyDay(d))
	}
	return &ForecastReport{City: city, Source: SourceMock, Days: days}, nil
}

func liveDays(entries []liveaqi.ForecastEntry, start time.Time) ([]ForecastDay, bool) {
	y, m, d := start.Date()
	startDate := time.Date(y, m, d, 0, 0, 0, 0, start.Location())

	days := make([]ForecastDay, 0, len(entries))
	for i, e := range entries {
		band, err := aqi.ClassifyFloat(e.AQI)
		if err != nil {
			return nil, false
		}
		cond, err := forecast.ParseCondition(e.Condition)
		if err != nil {
			log.Printf("dashboard: unknown live condition %q", e.Condition)
		}
		date := startDate.AddDate(0, 0, i)
		temp := int(e.Temp)
		day := forecast.Day{
			DayLabel:  e.Day,
			Date:      date.Format("Jan 2"),
			ValidDate: date,
			TempMin:   temp,
			TempMax:   temp,
			Condition: cond,
			AQI:       aqi.Clamp(e.AQI),
		}
		metrics.Classifications.WithLabelValues(string(band.Level)).Inc()
		days = append(days, ForecastDay{Day: day, Band: band, Advice: aqi.DayAdvice(day.AQI)})
	}
	return days, true
}

func classifyDay(d forecast.Day) ForecastDay {
	band := aqi.MustClassify(d.AQI)
	metrics.Classifications.WithLabelValues(string(band.Level)).Inc()
	return ForecastDay{Day: d, Band: band, Advice: aqi.DayAdvice(d.AQI)}
}

// Current returns the current air quality for location. Locations the
// backend cannot serve fall back to the generator's first day for the
// registry city, or for an ad-hoc seed named after the location.
func (s *Service) Current(ctx context.Context, location string) (*CurrentReport, error) {
	if s.backend != nil {
		r, err := s.backend.Fetch(ctx, location)
		if err == nil {
			band, cerr := aqi.ClassifyFloat(r.AQI)
			if cerr == nil {
				metrics.Classifications.WithLabelValues(string(band.Level)).Inc()
				lastUpdated := r.LastUpdated
				if lastUpdated == "" {
					lastUpdated = s.now().In(s.loc).Format(time.RFC3339)
				}
				return &CurrentReport{
					Location:    r.Location,
					Source:      SourceLive,
					AQI:         aqi.Clamp(r.AQI),
					Band:        band,
					Tips:        aqi.Tips(aqi.Clamp(r.AQI)),
					LastUpdated: lastUpdated,
					Pollutants: Pollutants{
						PM25: r.PM25, PM10: r.PM10, O3: r.O3,
						NO2: r.NO2, SO2: r.SO2, CO: r.CO,
					},
				}, nil
			}
			err = cerr
		}
		log.Printf("dashboard: live reading for %s unavailable, using mock: %v", location, err)
	}

	metrics.Fallbacks.WithLabelValues("current").Inc()
	return s.mockCurrent(location), nil
}

func (s *Service) mockCurrent(location string) *CurrentReport {
	city, ok := cities.Lookup(location)
	if !ok {
		city = forecast.CitySeed{Name: location}
	}
	today := s.Today()
	day := forecast.Generate(city, today, forecast.WithBaseSource(s.base))[0]

	report := &CurrentReport{
		Location:    city.Name,
		Source:      SourceMock,
		AQI:         day.AQI,
		LastUpdated: today.Format(time.RFC3339),
	}
	if demo, ok := cities.DemoFor(city.Name); ok {
		pm25 := demo.PM25
		report.PM25 = &pm25
	}
	report.Band = aqi.MustClassify(report.AQI)
	report.Tips = aqi.Tips(report.AQI)
	metrics.Classifications.WithLabelValues(string(report.Band.Level)).Inc()
	return report
}

// MapData returns classified markers for the India map.
func (s *Service) MapData(ctx context.Context) ([]MapPoint, string) {
	source := SourceMock
	var pts []cities.MapPoint
	if s.backend != nil {
		live, err := s.backend.FetchMap(ctx)
		if err != nil {
			log.Printf("dashboard: live map data unavailable, using demo points: %v", err)
		} else if len(live) > 0 {
			pts = live
			source = SourceLive
		}
	}
	if pts == nil {
		metrics.Fallbacks.WithLabelValues("map").Inc()
		pts = cities.MapPoints()
	}

	out := make([]MapPoint, 0, len(pts))
	for _, p := range pts {
		out = append(out, MapPoint{MapPoint: p, Band: aqi.MustClassify(p.AQI)})
	}
	return out, source
}

// TopCities returns the n most polluted map points, worst first. Ties keep
// registry order.
func (s *Service) TopCities(ctx context.Context, n int) ([]MapPoint, string) {
	pts, source := s.MapData(ctx)
	sort.SliceStable(pts, func(i, j int) bool {
		return pts[i].AQI > pts[j].AQI
	})
	if n > 0 && n < len(pts) {
		pts = pts[:n]
	}
	return pts, source
}
