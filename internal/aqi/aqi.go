package aqi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned for negative or non-finite AQI values.
var ErrInvalidInput = errors.New("invalid aqi")

// Unbounded marks the open upper end of the last band.
const Unbounded = math.MaxInt

// Level is the machine-readable name of a band.
type Level string

const (
	LevelGood          Level = "good"
	LevelModerate      Level = "moderate"
	LevelUSG           Level = "usg"
	LevelUnhealthy     Level = "unhealthy"
	LevelVeryUnhealthy Level = "very_unhealthy"
	LevelHazardous     Level = "hazardous"
)

// Severity returns a numeric severity for sorting (higher = worse air).
func (l Level) Severity() int {
	switch l {
	case LevelHazardous:
		return 5
	case LevelVeryUnhealthy:
		return 4
	case LevelUnhealthy:
		return 3
	case LevelUSG:
		return 2
	case LevelModerate:
		return 1
	default:
		return 0
	}
}

// Band is a contiguous AQI range with its display label, colour and advisory.
type Band struct {
	Level    Level  `json:"level"`
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Label    string `json:"label"`
	Color    string `json:"color"`
	Advisory string `json:"advisory"`
}

// Contains reports whether v falls inside the band's inclusive range.
func (b Band) Contains(v int) bool {
	return v >= b.Min && (b.Open() || v <= b.Max)
}

// Open reports whether the band has no upper bound.
func (b Band) Open() bool {
	return b.Max == Unbounded
}

// TextColor is the foreground used on a badge filled with the band colour.
func (b Band) TextColor() string {
	if b.Min > 150 {
		return "#ffffff"
	}
	return "#000000"
}

// MarshalJSON writes the open upper bound as null and adds the badge text colour.
func (b Band) MarshalJSON() ([]byte, error) {
	type plain Band
	out := struct {
		plain
		Max       *int   `json:"max"`
		TextColor string `json:"textColor"`
	}{plain: plain(b), TextColor: b.TextColor()}
	if !b.Open() {
		m := b.Max
		out.Max = &m
	}
	return json.Marshal(out)
}

const emergencyAdvisory = "Health warnings of emergency conditions. Everyone should avoid all outdoor exertion."

// bands is ordered by ascending threshold and covers [0, Unbounded] without gaps.
var bands = []Band{
	{
		Level:    LevelGood,
		Min:      0,
		Max:      50,
		Label:    "Good",
		Color:    "#16a34a",
		Advisory: "Air quality is good. Enjoy outdoor activities!",
	},
	{
		Level:    LevelModerate,
		Min:      51,
		Max:      100,
		Label:    "Moderate",
		Color:    "#eab308",
		Advisory: "Air quality is acceptable. Unusually sensitive people should consider reducing prolonged outdoor exertion.",
	},
	{
		Level:    LevelUSG,
		Min:      101,
		Max:      150,
		Label:    "Unhealthy for Sensitive Groups",
		Color:    "#f97316",
		Advisory: "Sensitive groups should reduce prolonged outdoor exertion.",
	},
	{
		Level:    LevelUnhealthy,
		Min:      151,
		Max:      200,
		Label:    "Unhealthy",
		Color:    "#ef4444",
		Advisory: "Everyone may begin to experience health effects. Sensitive groups should avoid prolonged outdoor exertion.",
	},
	{
		Level:    LevelVeryUnhealthy,
		Min:      201,
		Max:      300,
		Label:    "Very Unhealthy",
		Color:    "#7c3aed",
		Advisory: emergencyAdvisory,
	},
	{
		Level:    LevelHazardous,
		Min:      301,
		Max:      Unbounded,
		Label:    "Hazardous",
		Color:    "#7f1d1d",
		Advisory: emergencyAdvisory,
	},
}

// Classify returns the band containing aqi.
func Classify(aqi int) (Band, error) {
	if aqi < 0 {
		return Band{}, fmt.Errorf("%w: %d is negative", ErrInvalidInput, aqi)
	}
	for _, b := range bands {
		if b.Contains(aqi) {
			return b, nil
		}
	}
	// unreachable: the last band is unbounded
	return bands[len(bands)-1], nil
}

// ClassifyFloat classifies a reading that arrived as a float, truncating toward zero.
func ClassifyFloat(v float64) (Band, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Band{}, fmt.Errorf("%w: %v is not finite", ErrInvalidInput, v)
	}
	if v < 0 {
		return Band{}, fmt.Errorf("%w: %v is negative", ErrInvalidInput, v)
	}
	return Classify(Clamp(v))
}

// maxIndex caps float readings converted to int. Anything this large is
// already deep inside the Hazardous band.
const maxIndex = math.MaxInt32

// Clamp truncates v toward zero and saturates it to [0, math.MaxInt32].
// NaN maps to 0.
func Clamp(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= maxIndex:
		return maxIndex
	}
	return int(v)
}

// MustClassify classifies a value already known to be valid. Negative values
// are clamped to 0.
func MustClassify(aqi int) Band {
	if aqi < 0 {
		aqi = 0
	}
	b, _ := Classify(aqi)
	return b
}

// Bands returns a copy of the band table in ascending order.
func Bands() []Band {
	out := make([]Band, len(bands))
	copy(out, bands)
	return out
}
