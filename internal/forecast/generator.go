package forecast

import (
	"hash/fnv"
	"math/rand/v2"
	"time"
	"unicode/utf16"
)

// Days is the number of days every generated forecast covers.
const Days = 5

const (
	minAQI = 20
	maxAQI = 350
)

// CitySeed is a city the generator can derive a forecast from.
type CitySeed struct {
	Name  string  `json:"name"`
	State string  `json:"state,omitempty"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// Day is one synthetic forecast day.
type Day struct {
	DayLabel     string    `json:"day"`
	Date         string    `json:"fullDate"`
	ValidDate    time.Time `json:"validDate"`
	TempMin      int       `json:"tempMin"`
	TempMax      int       `json:"tempMax"`
	Condition    Condition `json:"condition"`
	HumidityPct  int       `json:"humidity"`
	AQI          int       `json:"aqi"`
	WindSpeedKmh int       `json:"windSpeed"`
}

// BaseSource supplies the per-call base temperature in [20, 35) and base AQI
// in [40, 160) that the daily values vary around.
type BaseSource interface {
	Base(city CitySeed, date time.Time) (temp, aqi int)
}

// SeededBase derives the base values from the city name and start date, so
// the whole forecast is reproducible.
type SeededBase struct{}

func (SeededBase) Base(city CitySeed, date time.Time) (int, int) {
	h := fnv.New64a()
	h.Write([]byte(city.Name))
	h.Write([]byte{0})
	h.Write([]byte(date.Format("2006-01-02")))
	sum := h.Sum64()
	return 20 + int(sum%15), 40 + int((sum>>16)%120)
}

// RandomBase draws fresh base values on every call. Day labels and conditions
// stay deterministic; temperatures and AQI shift together between calls.
type RandomBase struct{}

func (RandomBase) Base(CitySeed, time.Time) (int, int) {
	return 20 + rand.IntN(15), 40 + rand.IntN(120)
}

// FixedBase always returns the same base values.
type FixedBase struct {
	Temp int
	AQI  int
}

func (f FixedBase) Base(CitySeed, time.Time) (int, int) {
	return f.Temp, f.AQI
}

type options struct {
	base BaseSource
}

// Option configures Generate.
type Option func(*options)

// WithBaseSource overrides the default SeededBase.
func WithBaseSource(b BaseSource) Option {
	return func(o *options) {
		o.base = b
	}
}

// NameSum is the sum of the UTF-16 code units of name.
func NameSum(name string) int {
	sum := 0
	for _, u := range utf16.Encode([]rune(name)) {
		sum += int(u)
	}
	return sum
}

// seeded is the name-seeded pseudo-random sequence. It is only meant to give
// visually plausible variation between cities, nothing stronger.
type seeded int

// scaled returns floor(((sum*seed) mod 100)/100 * n) using integer arithmetic.
func (s seeded) scaled(seed, n int) int {
	return (int(s) * seed % 100) * n / 100
}

// Generate returns a 5-day synthetic forecast for city starting at start's
// calendar date. Day 0 is labelled "Today".
func Generate(city CitySeed, start time.Time, opts ...Option) []Day {
	o := options{base: SeededBase{}}
	for _, opt := range opts {
		opt(&o)
	}

	y, m, d := start.Date()
	startDate := time.Date(y, m, d, 0, 0, 0, 0, start.Location())

	baseTemp, baseAQI := o.base.Base(city, startDate)
	r := seeded(NameSum(city.Name))

	days := make([]Day, 0, Days)
	for i := 0; i < Days; i++ {
		date := startDate.AddDate(0, 0, i)

		dailyTemp := baseTemp + (r.scaled(i+3, 10) - 5)
		dailyAQI := clamp(baseAQI+(r.scaled(i+7, 60)-30), minAQI, maxAQI)

		label := "Today"
		if i > 0 {
			label = date.Weekday().String()
		}

		days = append(days, Day{
			DayLabel:     label,
			Date:         date.Format("Jan 2"),
			ValidDate:    date,
			TempMin:      dailyTemp - 3 - r.scaled(i+11, 5),
			TempMax:      dailyTemp + 3 + r.scaled(i+13, 5),
			Condition:    conditions[r.scaled(i+5, len(conditions))],
			HumidityPct:  40 + r.scaled(i+17, 40),
			AQI:          dailyAQI,
			WindSpeedKmh: 2 + r.scaled(i+19, 20),
		})
	}
	return days
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

