package api

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lox/airaware/internal/dashboard"
	"github.com/lox/airaware/internal/forecast"
)

func TestForecastChart_Cached(t *testing.T) {
	dash := dashboard.NewService(nil, time.UTC, forecast.FixedBase{Temp: 25, AQI: 100})
	s := NewServer(nil, dash, "0", time.UTC)

	get := func() []byte {
		t.Helper()
		w := httptest.NewRecorder()
		s.handleForecastChart(w, httptest.NewRequest("GET", "/api/forecast.png?city=Delhi", nil))
		if w.Code != 200 {
			t.Fatalf("code = %d: %s", w.Code, w.Body.String())
		}
		return w.Body.Bytes()
	}

	first := get()
	if n := s.chartCache.ItemCount(); n != 1 {
		t.Fatalf("cached charts = %d, want 1", n)
	}
	key := "delhi:" + dashboard.SourceMock + ":" + dash.Today().Format("2006-01-02")
	v, ok := s.chartCache.Get(key)
	if !ok {
		t.Fatalf("no cache entry for %q", key)
	}
	if !bytes.Equal(v.([]byte), first) {
		t.Error("cached bytes differ from response")
	}

	if second := get(); !bytes.Equal(first, second) {
		t.Error("second response not served from cache")
	}
	if n := s.chartCache.ItemCount(); n != 1 {
		t.Errorf("cached charts after repeat = %d, want 1", n)
	}
}
