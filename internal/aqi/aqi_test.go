package aqi

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestClassify_Labels(t *testing.T) {
	tests := []struct {
		lo, hi int
		want   string
	}{
		{0, 50, "Good"},
		{51, 100, "Moderate"},
		{101, 150, "Unhealthy for Sensitive Groups"},
		{151, 200, "Unhealthy"},
		{201, 300, "Very Unhealthy"},
		{301, 1000, "Hazardous"},
	}

	for _, tt := range tests {
		for v := tt.lo; v <= tt.hi; v++ {
			b, err := Classify(v)
			if err != nil {
				t.Fatalf("Classify(%d) error: %v", v, err)
			}
			if b.Label != tt.want {
				t.Errorf("Classify(%d).Label = %q, want %q", v, b.Label, tt.want)
			}
		}
	}
}

func TestClassify_Examples(t *testing.T) {
	tests := []struct {
		aqi       int
		wantLabel string
		wantColor string
	}{
		{42, "Good", "#16a34a"},
		{92, "Moderate", "#eab308"},
		{250, "Very Unhealthy", "#7c3aed"},
		{math.MaxInt, "Hazardous", "#7f1d1d"},
	}

	for _, tt := range tests {
		b, err := Classify(tt.aqi)
		if err != nil {
			t.Fatalf("Classify(%d) error: %v", tt.aqi, err)
		}
		if b.Label != tt.wantLabel || b.Color != tt.wantColor {
			t.Errorf("Classify(%d) = {%q, %q}, want {%q, %q}", tt.aqi, b.Label, b.Color, tt.wantLabel, tt.wantColor)
		}
	}
}

func TestBands_ContiguousAndExhaustive(t *testing.T) {
	bs := Bands()
	if bs[0].Min != 0 {
		t.Fatalf("first band starts at %d, want 0", bs[0].Min)
	}
	for i := 1; i < len(bs); i++ {
		if bs[i].Min != bs[i-1].Max+1 {
			t.Errorf("gap or overlap between %q (max %d) and %q (min %d)", bs[i-1].Label, bs[i-1].Max, bs[i].Label, bs[i].Min)
		}
	}
	if !bs[len(bs)-1].Open() {
		t.Error("last band should be unbounded")
	}

	for v := 0; v <= 600; v++ {
		matches := 0
		for _, b := range bs {
			if b.Contains(v) {
				matches++
			}
		}
		if matches != 1 {
			t.Errorf("aqi %d matched %d bands, want 1", v, matches)
		}
	}
}

func TestBands_ReturnsCopy(t *testing.T) {
	bs := Bands()
	bs[0].Label = "mutated"
	if b, _ := Classify(0); b.Label != "Good" {
		t.Errorf("band table was mutated through Bands(): %q", b.Label)
	}
}

func TestClassify_Negative(t *testing.T) {
	_, err := Classify(-1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Classify(-1) err = %v, want ErrInvalidInput", err)
	}
}

func TestClassifyFloat(t *testing.T) {
	tests := []struct {
		v       float64
		want    string
		wantErr bool
	}{
		{50.9, "Good", false},
		{51, "Moderate", false},
		{300.5, "Very Unhealthy", false},
		{1e300, "Hazardous", false},
		{-0.5, "", true},
		{math.NaN(), "", true},
		{math.Inf(1), "", true},
		{math.Inf(-1), "", true},
	}

	for _, tt := range tests {
		b, err := ClassifyFloat(tt.v)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ClassifyFloat(%v) err = %v, want ErrInvalidInput", tt.v, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ClassifyFloat(%v) error: %v", tt.v, err)
			continue
		}
		if b.Label != tt.want {
			t.Errorf("ClassifyFloat(%v) = %q, want %q", tt.v, b.Label, tt.want)
		}
	}
}

func TestMustClassify_ClampsNegative(t *testing.T) {
	if got := MustClassify(-20).Level; got != LevelGood {
		t.Errorf("MustClassify(-20) = %s, want good", got)
	}
}

func TestLevel_Severity(t *testing.T) {
	bs := Bands()
	for i := 1; i < len(bs); i++ {
		if bs[i].Level.Severity() <= bs[i-1].Level.Severity() {
			t.Errorf("%s should be more severe than %s", bs[i].Level, bs[i-1].Level)
		}
	}
}

func TestBand_TextColor(t *testing.T) {
	if got := MustClassify(150).TextColor(); got != "#000000" {
		t.Errorf("TextColor at 150 = %s, want black", got)
	}
	if got := MustClassify(151).TextColor(); got != "#ffffff" {
		t.Errorf("TextColor at 151 = %s, want white", got)
	}
}

func TestBandJSON(t *testing.T) {
	b, _ := Classify(350)
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(data)
	for _, want := range []string{`"max":null`, `"level":"hazardous"`, `"textColor":"#ffffff"`} {
		if !strings.Contains(got, want) {
			t.Errorf("hazardous JSON %s missing %s", got, want)
		}
	}

	b, _ = Classify(10)
	data, _ = json.Marshal(b)
	if !strings.Contains(string(data), `"max":50`) || !strings.Contains(string(data), `"textColor":"#000000"`) {
		t.Errorf("good JSON = %s", data)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v    float64
		want int
	}{
		{0, 0},
		{50.9, 50},
		{-3, 0},
		{math.NaN(), 0},
		{1e20, math.MaxInt32},
		{math.Inf(1), math.MaxInt32},
		{float64(math.MaxInt32) + 0.5, math.MaxInt32},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v); got != tt.want {
			t.Errorf("Clamp(%v) = %d, want %d", tt.v, got, tt.want)
		}
	}

	// The clamped index must agree with the band ClassifyFloat picked.
	for _, v := range []float64{1e20, 1e300, 350.2} {
		b, err := ClassifyFloat(v)
		if err != nil {
			t.Fatalf("ClassifyFloat(%v): %v", v, err)
		}
		if !b.Contains(Clamp(v)) {
			t.Errorf("band %s does not contain Clamp(%v) = %d", b.Label, v, Clamp(v))
		}
	}
}
