package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/lox/airaware/internal/aqi"
	"github.com/lox/airaware/internal/briefing"
	"github.com/lox/airaware/internal/chart"
	"github.com/lox/airaware/internal/cities"
	"github.com/lox/airaware/internal/dashboard"
	"github.com/lox/airaware/internal/forecast"
	"github.com/lox/airaware/internal/settings"
)

const (
	defaultTopCities = 10
	defaultHistory   = 24
	maxHistory       = 7 * 24
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "AirAware API is running"})
}

func (s *Server) handleAQI(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	if location == "" {
		location = cities.Default().Name
	}

	report, err := s.dash.Current(r.Context(), location)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type mapResponse struct {
	Source string               `json:"source"`
	Points []dashboard.MapPoint `json:"points"`
}

func (s *Server) handleIndia(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	pts, source := s.dash.MapData(r.Context())
	writeJSON(w, http.StatusOK, mapResponse{Source: source, Points: pts})
}

func (s *Server) handleTopCities(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	n, err := intParam(r, "n", defaultTopCities)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "n must be a positive integer")
		return
	}
	pts, source := s.dash.TopCities(r.Context(), n)
	writeJSON(w, http.StatusOK, mapResponse{Source: source, Points: pts})
}

// forecastCity resolves the city query parameter, defaulting to the
// registry's default city. It writes a 404 and returns false when the city is
// unknown.
func forecastCity(w http.ResponseWriter, r *http.Request) (forecast.CitySeed, bool) {
	name := strings.TrimSpace(r.URL.Query().Get("city"))
	if name == "" {
		return cities.Default(), true
	}
	c, ok := cities.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%v: %s", cities.ErrUnknownCity, name))
		return forecast.CitySeed{}, false
	}
	return c, true
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	city, ok := forecastCity(w, r)
	if !ok {
		return
	}

	report, err := s.dash.Forecast(r.Context(), city, s.dash.Today())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleForecastChart(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	city, ok := forecastCity(w, r)
	if !ok {
		return
	}

	today := s.dash.Today()
	report, err := s.dash.Forecast(r.Context(), city, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	key := strings.ToLower(city.Name) + ":" + report.Source + ":" + today.Format("2006-01-02")
	var data []byte
	if v, ok := s.chartCache.Get(key); ok {
		data = v.([]byte)
	} else {
		bars := make([]chart.Bar, 0, len(report.Days))
		for _, d := range report.Days {
			bars = append(bars, chart.Bar{Label: d.DayLabel, AQI: d.AQI, Color: d.Band.Color})
		}
		data, err = chart.Render(city.Name+" AQI trend", bars)
		if err != nil {
			log.Printf("api: render chart for %s: %v", city.Name, err)
			http.Error(w, "Failed to render chart", http.StatusInternalServerError)
			return
		}
		s.chartCache.Set(key, data, cache.DefaultExpiration)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}

// aqiParam parses the aqi query parameter.
func aqiParam(r *http.Request) (aqi.Band, int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("aqi"))
	if raw == "" {
		return aqi.Band{}, 0, errors.New("aqi parameter is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return aqi.Band{}, 0, fmt.Errorf("%w: %q is not a number", aqi.ErrInvalidInput, raw)
	}
	band, err := aqi.ClassifyFloat(v)
	if err != nil {
		return aqi.Band{}, 0, err
	}
	return band, aqi.Clamp(v), nil
}

type classifyResponse struct {
	AQI  int      `json:"aqi"`
	Band aqi.Band `json:"band"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	band, v, err := aqiParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{AQI: v, Band: band})
}

func (s *Server) handleBands(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, aqi.Bands())
}

type tipsResponse struct {
	AQI      int                 `json:"aqi"`
	Band     aqi.Band            `json:"band"`
	Tips     []string            `json:"tips"`
	Advice   string              `json:"advice"`
	Guidance []aqi.GuidanceTopic `json:"guidance"`
}

func (s *Server) handleTips(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	band, v, err := aqiParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tipsResponse{
		AQI:      v,
		Band:     band,
		Tips:     aqi.Tips(v),
		Advice:   aqi.DayAdvice(v),
		Guidance: aqi.Guidance(),
	})
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	results := cities.All()
	if q != "" {
		results = cities.Search(q)
	}
	if results == nil {
		results = []forecast.CitySeed{}
	}
	writeJSON(w, http.StatusOK, results)
}

type historyPoint struct {
	ObservedAt time.Time `json:"observedAt"`
	Source     string    `json:"source"`
	AQI        int       `json:"aqi"`
	Band       aqi.Band  `json:"band"`
	PM25       *float64  `json:"pm25"`
	PM10       *float64  `json:"pm10"`
}

type historyResponse struct {
	City   string         `json:"city"`
	Hours  int            `json:"hours"`
	Count  int            `json:"count"`
	MinAQI *int64         `json:"minAqi"`
	MaxAQI *int64         `json:"maxAqi"`
	AvgAQI *float64       `json:"avgAqi"`
	Points []historyPoint `json:"points"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	city, ok := forecastCity(w, r)
	if !ok {
		return
	}
	hours, err := intParam(r, "hours", defaultHistory)
	if err != nil || hours < 1 || hours > maxHistory {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("hours must be between 1 and %d", maxHistory))
		return
	}

	end := time.Now()
	start := end.Add(-time.Duration(hours) * time.Hour)

	readings, err := s.store.GetReadings(city.Name, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := s.store.GetReadingStats(city.Name, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := historyResponse{
		City:   city.Name,
		Hours:  hours,
		Count:  stats.Count,
		Points: make([]historyPoint, 0, len(readings)),
	}
	if stats.MinAQI.Valid {
		resp.MinAQI = &stats.MinAQI.Int64
	}
	if stats.MaxAQI.Valid {
		resp.MaxAQI = &stats.MaxAQI.Int64
	}
	if stats.AvgAQI.Valid {
		resp.AvgAQI = &stats.AvgAQI.Float64
	}
	for _, rd := range readings {
		p := historyPoint{
			ObservedAt: rd.ObservedAt.In(s.loc),
			Source:     rd.Source,
			AQI:        rd.AQI,
			Band:       aqi.MustClassify(rd.AQI),
		}
		if rd.PM25.Valid {
			v := rd.PM25.Float64
			p.PM25 = &v
		}
		if rd.PM10.Valid {
			v := rd.PM10.Float64
			p.PM10 = &v
		}
		resp.Points = append(resp.Points, p)
	}
	writeJSON(w, http.StatusOK, resp)
}

type settingsResponse struct {
	Profile  string            `json:"profile"`
	Settings settings.Settings `json:"settings"`
	TempUnit string            `json:"tempUnit"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPut, http.MethodDelete) {
		return
	}
	profile := strings.TrimSpace(r.URL.Query().Get("profile"))
	if profile == "" {
		profile = settings.DefaultProfile
	}

	var (
		st  settings.Settings
		err error
	)
	switch r.Method {
	case http.MethodGet:
		st, err = s.settings.Load(r.Context(), profile)
	case http.MethodPut:
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&st); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		err = s.settings.Save(r.Context(), profile, st)
		if errors.Is(err, settings.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	case http.MethodDelete:
		st, err = s.settings.Reset(r.Context(), profile)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Profile: profile, Settings: st, TempUnit: st.TempUnit()})
}

type briefingResponse struct {
	City     string `json:"city"`
	Date     string `json:"date"`
	Source   string `json:"source"`
	Briefing string `json:"briefing"`
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	if !s.briefing.Enabled() {
		writeError(w, http.StatusServiceUnavailable, briefing.ErrDisabled.Error())
		return
	}
	city, ok := forecastCity(w, r)
	if !ok {
		return
	}

	today := s.dash.Today()
	report, err := s.dash.Forecast(r.Context(), city, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	text, err := s.briefing.Brief(r.Context(), report, today)
	if err != nil {
		log.Printf("api: briefing for %s: %v", city.Name, err)
		writeError(w, http.StatusBadGateway, "briefing unavailable")
		return
	}
	writeJSON(w, http.StatusOK, briefingResponse{
		City:     city.Name,
		Date:     today.Format("2006-01-02"),
		Source:   report.Source,
		Briefing: text,
	})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
