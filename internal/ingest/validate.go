package ingest

import (
	"database/sql"

	"github.com/lox/airaware/internal/models"
)

const (
	FlagAQIOutOfRange     = "aqi_out_of_range"
	FlagPM25OutOfRange    = "pm25_out_of_range"
	FlagPM10OutOfRange    = "pm10_out_of_range"
	FlagPollutantNegative = "pollutant_negative"
	FlagPM25ExceedsPM10   = "pm25_exceeds_pm10"
)

// maxPlausibleAQI is well past the top of the Hazardous band. Indices beyond
// it come from a broken sensor or a unit mix-up.
const maxPlausibleAQI = 1000

func ValidateReading(r *models.Reading) []string {
	var flags []string

	if r.AQI < 0 || r.AQI > maxPlausibleAQI {
		flags = append(flags, FlagAQIOutOfRange)
	}

	if r.PM25.Valid && r.PM25.Float64 > 1000 {
		flags = append(flags, FlagPM25OutOfRange)
	}
	if r.PM10.Valid && r.PM10.Float64 > 2000 {
		flags = append(flags, FlagPM10OutOfRange)
	}

	for _, v := range []sql.NullFloat64{r.PM25, r.PM10, r.O3, r.NO2, r.SO2, r.CO} {
		if v.Valid && v.Float64 < 0 {
			flags = append(flags, FlagPollutantNegative)
			break
		}
	}

	// PM2.5 is a subset of PM10.
	if r.PM25.Valid && r.PM10.Valid && r.PM10.Float64 > 0 && r.PM25.Float64 > r.PM10.Float64 {
		flags = append(flags, FlagPM25ExceedsPM10)
	}

	return flags
}

// HasRejectFlag reports whether flags mark a reading unfit to store.
func HasRejectFlag(flags []string) bool {
	for _, f := range flags {
		if f == FlagAQIOutOfRange || f == FlagPollutantNegative {
			return true
		}
	}
	return false
}
