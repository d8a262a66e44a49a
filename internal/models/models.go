package models

import (
	"database/sql"
	"time"
)

type City struct {
	Name    string
	State   string
	Lat     float64
	Lng     float64
	MapOnly bool
	Active  bool
}

// Reading is one stored AQI snapshot for a city.
type Reading struct {
	ID         int64
	City       string
	ObservedAt time.Time
	Source     string // "live" or "mock"
	AQI        int
	Level      string
	PM25       sql.NullFloat64
	PM10       sql.NullFloat64
	O3         sql.NullFloat64
	NO2        sql.NullFloat64
	SO2        sql.NullFloat64
	CO         sql.NullFloat64
	RawJSON    string
	CreatedAt  time.Time
}

// ReadingStats summarises stored readings for a city over a window.
type ReadingStats struct {
	Count  int
	MinAQI sql.NullInt64
	MaxAQI sql.NullInt64
	AvgAQI sql.NullFloat64
}
