package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lox/airaware/internal/api"
	"github.com/lox/airaware/internal/briefing"
	"github.com/lox/airaware/internal/dashboard"
	"github.com/lox/airaware/internal/forecast"
	"github.com/lox/airaware/internal/liveaqi"
	"github.com/lox/airaware/internal/models"
	"github.com/lox/airaware/internal/store"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) (*store.Store, *time.Location) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	loc := time.UTC
	s := store.New(db, loc)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s, loc
}

// newTestServer builds a server whose dashboard has no live backend, so every
// report comes from the generator with fixed base values.
func newTestServer(t *testing.T) (*api.Server, *store.Store) {
	t.Helper()
	s, loc := setupTestStore(t)
	dash := dashboard.NewService(nil, loc, forecast.FixedBase{Temp: 25, AQI: 100})
	return api.NewServer(s, dash, "8080", loc), s
}

func do(t *testing.T, srv *api.Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestIndex(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	w := do(t, srv, "GET", "/", "")
	if w.Code != 200 || !strings.Contains(w.Body.String(), "AirAware API is running") {
		t.Errorf("GET / = %d %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}

	if w := do(t, srv, "GET", "/nope", ""); w.Code != 404 {
		t.Errorf("GET /nope = %d, want 404", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv, st := newTestServer(t)

	w := do(t, srv, "GET", "/health", "")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var h api.HealthStatus
	decode(t, w, &h)
	if h.Status != "ok" || len(h.Cities) != 0 {
		t.Errorf("health = %+v", h)
	}

	if err := st.InsertReading(models.Reading{
		City: "Delhi", ObservedAt: time.Now().Add(-3 * time.Hour), Source: "live", AQI: 150, Level: "usg",
	}); err != nil {
		t.Fatal(err)
	}
	w = do(t, srv, "GET", "/health", "")
	decode(t, w, &h)
	if h.Status != "degraded" || len(h.Cities) != 1 || !h.Cities[0].Stale {
		t.Errorf("health with stale reading = %+v", h)
	}
	city := "Delhi"
	run, err := st.StartIngestRun("live", "api/aqi", &city)
	if err != nil {
		t.Fatal(err)
	}
	run.ErrorMessage = sql.NullString{String: "status 503", Valid: true}
	if err := st.CompleteIngestRun(run); err != nil {
		t.Fatal(err)
	}
	var h2 api.HealthStatus
	decode(t, do(t, srv, "GET", "/health", ""), &h2)
	if len(h2.Ingest) != 1 || h2.Ingest[0].FailedRuns != 1 || h2.Ingest[0].LastFailure != "status 503" {
		t.Errorf("ingest health = %+v", h2.Ingest)
	}
}

type bandJSON struct {
	Level string `json:"level"`
	Min   int    `json:"min"`
	Max   *int   `json:"max"`
	Label string `json:"label"`
	Color string `json:"color"`
}

func TestClassify(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	tests := []struct {
		query     string
		wantCode  int
		wantLevel string
	}{
		{"aqi=0", 200, "good"},
		{"aqi=50", 200, "good"},
		{"aqi=50.9", 200, "good"},
		{"aqi=51", 200, "moderate"},
		{"aqi=150", 200, "usg"},
		{"aqi=201", 200, "very_unhealthy"},
		{"aqi=999", 200, "hazardous"},
		{"aqi=-1", 400, ""},
		{"aqi=abc", 400, ""},
		{"aqi=NaN", 400, ""},
		{"", 400, ""},
	}
	for _, tt := range tests {
		w := do(t, srv, "GET", "/api/classify?"+tt.query, "")
		if w.Code != tt.wantCode {
			t.Errorf("%s: code = %d, want %d (%s)", tt.query, w.Code, tt.wantCode, w.Body.String())
			continue
		}
		if tt.wantCode != 200 {
			continue
		}
		var resp struct {
			AQI  int      `json:"aqi"`
			Band bandJSON `json:"band"`
		}
		decode(t, w, &resp)
		if resp.Band.Level != tt.wantLevel {
			t.Errorf("%s: level = %s, want %s", tt.query, resp.Band.Level, tt.wantLevel)
		}
	}

	if w := do(t, srv, "POST", "/api/classify?aqi=10", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST classify = %d, want 405", w.Code)
	}
}

func TestBands(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	var bands []bandJSON
	decode(t, do(t, srv, "GET", "/api/bands", ""), &bands)
	if len(bands) != 6 {
		t.Fatalf("got %d bands, want 6", len(bands))
	}
	if bands[0].Label != "Good" || bands[0].Color != "#16a34a" || *bands[0].Max != 50 {
		t.Errorf("first band = %+v", bands[0])
	}
	if bands[5].Max != nil {
		t.Errorf("last band max = %d, want null", *bands[5].Max)
	}
}

func TestTips(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	var resp struct {
		Band     bandJSON `json:"band"`
		Tips     []string `json:"tips"`
		Advice   string   `json:"advice"`
		Guidance []struct {
			Title string `json:"title"`
		} `json:"guidance"`
	}
	decode(t, do(t, srv, "GET", "/api/tips?aqi=120", ""), &resp)
	if resp.Band.Level != "usg" || len(resp.Tips) == 0 || len(resp.Guidance) == 0 {
		t.Errorf("tips = %+v", resp)
	}
	if !strings.Contains(strings.ToLower(resp.Advice), "mask") {
		t.Errorf("advice = %q, want mask advice above 100", resp.Advice)
	}

	if w := do(t, srv, "GET", "/api/tips", ""); w.Code != 400 {
		t.Errorf("tips without aqi = %d, want 400", w.Code)
	}

	var huge struct {
		AQI    int      `json:"aqi"`
		Band   bandJSON `json:"band"`
		Tips   []string `json:"tips"`
		Advice string   `json:"advice"`
	}
	decode(t, do(t, srv, "GET", "/api/tips?aqi=1e20", ""), &huge)
	if huge.Band.Level != "hazardous" || huge.AQI != math.MaxInt32 {
		t.Errorf("aqi=1e20: level %s aqi %d, want hazardous %d", huge.Band.Level, huge.AQI, math.MaxInt32)
	}
	if len(huge.Tips) == 0 || !strings.HasPrefix(huge.Tips[0], "Emergency") {
		t.Errorf("aqi=1e20 tips = %v, want emergency tips", huge.Tips)
	}
	if !strings.Contains(strings.ToLower(huge.Advice), "mask") {
		t.Errorf("aqi=1e20 advice = %q", huge.Advice)
	}
}

func TestCities(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	tests := []struct {
		query string
		want  int
	}{
		{"", 10},
		{"q=tamil", 6},
		{"q=DEL", 1},
		{"q=puducherry", 0},
		{"q=zzz", 0},
	}
	for _, tt := range tests {
		w := do(t, srv, "GET", "/api/cities?"+tt.query, "")
		var got []forecast.CitySeed
		decode(t, w, &got)
		if len(got) != tt.want {
			t.Errorf("%q: got %d cities, want %d", tt.query, len(got), tt.want)
		}
		if tt.want == 0 && strings.TrimSpace(w.Body.String()) != "[]" {
			t.Errorf("%q: body = %s, want []", tt.query, w.Body.String())
		}
	}
}

type forecastJSON struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	Source string `json:"source"`
	Days   []struct {
		Day       string   `json:"day"`
		FullDate  string   `json:"fullDate"`
		AQI       int      `json:"aqi"`
		Condition string   `json:"condition"`
		Band      bandJSON `json:"band"`
	} `json:"days"`
}

func TestForecast_Mock(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	w := do(t, srv, "GET", "/api/forecast?city=delhi", "")
	if w.Code != 200 {
		t.Fatalf("code = %d: %s", w.Code, w.Body.String())
	}
	var f forecastJSON
	decode(t, w, &f)

	if f.City.Name != "Delhi" || f.Source != "mock" {
		t.Errorf("report = %s/%s", f.City.Name, f.Source)
	}
	want := []int{64, 59, 53, 48, 42}
	if len(f.Days) != len(want) {
		t.Fatalf("got %d days, want %d", len(f.Days), len(want))
	}
	for i, d := range f.Days {
		if d.AQI != want[i] {
			t.Errorf("day %d AQI = %d, want %d", i, d.AQI, want[i])
		}
	}
	if f.Days[0].Day != "Today" || f.Days[0].Band.Level != "moderate" || f.Days[4].Band.Level != "good" {
		t.Errorf("days = %+v", f.Days)
	}

	var def forecastJSON
	decode(t, do(t, srv, "GET", "/api/forecast", ""), &def)
	if def.City.Name != "Chennai" {
		t.Errorf("default city = %q, want Chennai", def.City.Name)
	}
}

func TestForecast_UnknownCity(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/forecast?city=Atlantis", "/api/forecast.png?city=Atlantis", "/api/forecast?city=Puducherry"} {
		w := do(t, srv, "GET", path, "")
		if w.Code != 404 {
			t.Errorf("%s = %d, want 404", path, w.Code)
		}
	}
}

func TestForecast_Live(t *testing.T) {
	t.Parallel()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"location":"Mumbai","aqi":89,"forecast":[
			{"day":"Today","temp":31,"condition":"Sunny","aqi":89},
			{"day":"Tue","temp":30,"condition":"Light rain","aqi":120}]}`)
	}))
	defer backend.Close()

	client, err := liveaqi.NewClient(liveaqi.Config{BaseURL: backend.URL})
	if err != nil {
		t.Fatal(err)
	}
	s, loc := setupTestStore(t)
	srv := api.NewServer(s, dashboard.NewService(client, loc, nil), "8080", loc)

	var f forecastJSON
	decode(t, do(t, srv, "GET", "/api/forecast?city=Mumbai", ""), &f)
	if f.Source != "live" || len(f.Days) != 2 {
		t.Fatalf("forecast = %+v", f)
	}
	if f.Days[1].Condition != "rain" || f.Days[1].Band.Level != "usg" {
		t.Errorf("day 1 = %+v", f.Days[1])
	}

	var cur struct {
		Source string   `json:"source"`
		AQI    int      `json:"aqi"`
		Band   bandJSON `json:"band"`
	}
	decode(t, do(t, srv, "GET", "/api/aqi?location=Mumbai", ""), &cur)
	if cur.Source != "live" || cur.AQI != 89 || cur.Band.Level != "moderate" {
		t.Errorf("current = %+v", cur)
	}
}

func TestForecast_BackendErrorFallsBack(t *testing.T) {
	t.Parallel()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer backend.Close()

	client, err := liveaqi.NewClient(liveaqi.Config{BaseURL: backend.URL})
	if err != nil {
		t.Fatal(err)
	}
	s, loc := setupTestStore(t)
	srv := api.NewServer(s, dashboard.NewService(client, loc, forecast.FixedBase{Temp: 25, AQI: 100}), "8080", loc)

	w := do(t, srv, "GET", "/api/forecast?city=Delhi", "")
	if w.Code != 200 {
		t.Fatalf("code = %d, want 200 from the fallback", w.Code)
	}
	var f forecastJSON
	decode(t, w, &f)
	if f.Source != "mock" || len(f.Days) != forecast.Days || f.Days[0].AQI != 64 {
		t.Errorf("forecast = %s with %d days", f.Source, len(f.Days))
	}
}

func TestForecastChart(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	for i := 0; i < 2; i++ {
		w := do(t, srv, "GET", "/api/forecast.png?city=Kolkata", "")
		if w.Code != 200 {
			t.Fatalf("code = %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q", ct)
		}
		if _, err := png.Decode(bytes.NewReader(w.Body.Bytes())); err != nil {
			t.Errorf("decode png: %v", err)
		}
	}
}

func TestCurrent_Mock(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	var cur struct {
		Location string   `json:"location"`
		Source   string   `json:"source"`
		AQI      int      `json:"aqi"`
		PM25     *float64 `json:"pm25"`
		Tips     []string `json:"tips"`
	}
	decode(t, do(t, srv, "GET", "/api/aqi?location=Delhi", ""), &cur)
	if cur.Location != "Delhi" || cur.Source != "mock" || cur.AQI != 64 {
		t.Errorf("current = %+v", cur)
	}
	if cur.PM25 == nil || *cur.PM25 != 95 || len(cur.Tips) == 0 {
		t.Errorf("current extras = %+v", cur)
	}
}

func TestMapAndTopCities(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	var india struct {
		Source string `json:"source"`
		Points []struct {
			Location string   `json:"location"`
			AQI      int      `json:"aqi"`
			Band     bandJSON `json:"band"`
		} `json:"points"`
	}
	decode(t, do(t, srv, "GET", "/api/aqi/india", ""), &india)
	if india.Source != "mock" || len(india.Points) != 11 {
		t.Errorf("india = %s with %d points", india.Source, len(india.Points))
	}

	decode(t, do(t, srv, "GET", "/api/top-cities?n=2", ""), &india)
	if len(india.Points) != 2 || india.Points[0].Location != "Delhi" || india.Points[1].Location != "Kolkata" {
		t.Errorf("top cities = %+v", india.Points)
	}
	if india.Points[0].Band.Level != "unhealthy" {
		t.Errorf("Delhi level = %s", india.Points[0].Band.Level)
	}

	for _, q := range []string{"n=0", "n=abc"} {
		if w := do(t, srv, "GET", "/api/top-cities?"+q, ""); w.Code != 400 {
			t.Errorf("%s = %d, want 400", q, w.Code)
		}
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()
	srv, st := newTestServer(t)

	now := time.Now().UTC().Truncate(time.Minute)
	for i, v := range []int{120, 160, 140} {
		err := st.InsertReading(models.Reading{
			City:       "Delhi",
			ObservedAt: now.Add(-time.Duration(i+1) * time.Hour),
			Source:     "live",
			AQI:        v,
			PM25:       sql.NullFloat64{Float64: float64(v) / 2, Valid: true},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := st.InsertReading(models.Reading{City: "Delhi", ObservedAt: now.Add(-48 * time.Hour), Source: "live", AQI: 300}); err != nil {
		t.Fatal(err)
	}

	var h struct {
		Count  int      `json:"count"`
		MinAQI *int64   `json:"minAqi"`
		MaxAQI *int64   `json:"maxAqi"`
		AvgAQI *float64 `json:"avgAqi"`
		Points []struct {
			AQI  int      `json:"aqi"`
			PM25 *float64 `json:"pm25"`
			PM10 *float64 `json:"pm10"`
		} `json:"points"`
	}
	decode(t, do(t, srv, "GET", "/api/history?city=Delhi&hours=24", ""), &h)
	if h.Count != 3 || len(h.Points) != 3 {
		t.Fatalf("history count = %d points = %d, want 3", h.Count, len(h.Points))
	}
	if *h.MinAQI != 120 || *h.MaxAQI != 160 || *h.AvgAQI != 140 {
		t.Errorf("stats = %d/%d/%v", *h.MinAQI, *h.MaxAQI, *h.AvgAQI)
	}
	if h.Points[0].AQI != 140 || h.Points[0].PM25 == nil || h.Points[0].PM10 != nil {
		t.Errorf("oldest point = %+v", h.Points[0])
	}

	var empty struct {
		Count  int   `json:"count"`
		MinAQI *int  `json:"minAqi"`
		Points []any `json:"points"`
	}
	decode(t, do(t, srv, "GET", "/api/history?city=Erode", ""), &empty)
	if empty.Count != 0 || empty.MinAQI != nil || empty.Points == nil {
		t.Errorf("empty history = %+v", empty)
	}

	for _, q := range []string{"city=Delhi&hours=0", "city=Delhi&hours=1000", "city=Delhi&hours=x"} {
		if w := do(t, srv, "GET", "/api/history?"+q, ""); w.Code != 400 {
			t.Errorf("%s = %d, want 400", q, w.Code)
		}
	}
}

func TestSettings(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	type resp struct {
		Profile  string `json:"profile"`
		TempUnit string `json:"tempUnit"`
		Settings struct {
			Name     string `json:"name"`
			Language string `json:"language"`
			Units    string `json:"units"`
			Accent   string `json:"accent"`
		} `json:"settings"`
	}

	var r resp
	decode(t, do(t, srv, "GET", "/api/settings", ""), &r)
	if r.Profile != "default" || r.Settings.Language != "en" || r.TempUnit != "°C" {
		t.Errorf("defaults = %+v", r)
	}

	body := `{"name":"Asha","email":"asha@example.com","language":"ta","units":"imperial","notifications":false,"accent":"#ef4444","shareAnon":false}`
	w := do(t, srv, "PUT", "/api/settings?profile=asha", body)
	if w.Code != 200 {
		t.Fatalf("PUT = %d: %s", w.Code, w.Body.String())
	}

	decode(t, do(t, srv, "GET", "/api/settings?profile=asha", ""), &r)
	if r.Settings.Name != "Asha" || r.Settings.Units != "imperial" || r.TempUnit != "°F" {
		t.Errorf("saved = %+v", r)
	}

	for _, bad := range []string{`{"language":"fr","units":"metric","accent":"#06b6d4"}`, `not json`} {
		if w := do(t, srv, "PUT", "/api/settings?profile=asha", bad); w.Code != 400 {
			t.Errorf("PUT %s = %d, want 400", bad, w.Code)
		}
	}

	decode(t, do(t, srv, "DELETE", "/api/settings?profile=asha", ""), &r)
	if r.Settings.Name != "" || r.Settings.Units != "metric" {
		t.Errorf("after reset = %+v", r)
	}
	decode(t, do(t, srv, "GET", "/api/settings?profile=asha", ""), &r)
	if r.Settings.Language != "en" {
		t.Errorf("after reset GET = %+v", r)
	}
}

type fakeCompleter struct{ reply string }

func (f fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.reply, nil
}

func TestBriefing(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	if w := do(t, srv, "GET", "/api/briefing?city=Delhi", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled briefing = %d, want 503", w.Code)
	}

	srv.SetBriefingGenerator(briefing.NewGeneratorWithCompleter(
		fakeCompleter{reply: "Air is moderate. Keep windows closed at night."},
		briefing.NewCache(t.TempDir()),
	))

	var b struct {
		City     string `json:"city"`
		Source   string `json:"source"`
		Briefing string `json:"briefing"`
	}
	decode(t, do(t, srv, "GET", "/api/briefing?city=Delhi", ""), &b)
	if b.City != "Delhi" || b.Source != "mock" || b.Briefing != "Air is moderate. Keep windows closed at night." {
		t.Errorf("briefing = %+v", b)
	}

	if w := do(t, srv, "GET", "/api/briefing?city=Atlantis", ""); w.Code != 404 {
		t.Errorf("unknown city briefing = %d, want 404", w.Code)
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	do(t, srv, "GET", "/api/forecast?city=Delhi", "")
	w := do(t, srv, "GET", "/metrics", "")
	if w.Code != 200 {
		t.Fatalf("metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "airaware_fallbacks_total") {
		t.Error("expected airaware_fallbacks_total in metrics output")
	}
}
