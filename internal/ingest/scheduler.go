package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lox/airaware/internal/aqi"
	"github.com/lox/airaware/internal/cities"
	"github.com/lox/airaware/internal/liveaqi"
	"github.com/lox/airaware/internal/metrics"
	"github.com/lox/airaware/internal/models"
	"github.com/lox/airaware/internal/store"
)

const (
	DefaultInterval = 15 * time.Minute
	sourceLive      = "live"
	endpointAQI     = "api/aqi"
)

// Fetcher fetches current readings. *liveaqi.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (*liveaqi.Reading, error)
}

type Scheduler struct {
	store    *store.Store
	fetcher  Fetcher
	loc      *time.Location
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func NewScheduler(store *store.Store, fetcher Fetcher, loc *time.Location) *Scheduler {
	return &Scheduler{
		store:    store,
		fetcher:  fetcher,
		loc:      loc,
		interval: DefaultInterval,
		timeout:  30 * time.Second,
		now:      time.Now,
	}
}

// SetInterval overrides the default 15 minute poll interval.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// SyncCities makes sure every registry city has a row in the store.
func (s *Scheduler) SyncCities() error {
	for _, c := range cities.Entries() {
		if err := s.store.UpsertCity(models.City{
			Name:    c.Name,
			State:   c.State,
			Lat:     c.Lat,
			Lng:     c.Lng,
			MapOnly: c.MapOnly,
			Active:  true,
		}); err != nil {
			return fmt.Errorf("upsert city %s: %w", c.Name, err)
		}
	}
	return nil
}

func (s *Scheduler) Run(ctx context.Context) {
	if err := s.SyncCities(); err != nil {
		log.Printf("scheduler: sync cities: %v", err)
	}
	s.ingestReadings(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			s.ingestReadings(ctx)
		}
	}
}

// IngestOnce polls every active city a single time and reports how many
// readings were stored.
func (s *Scheduler) IngestOnce(ctx context.Context) (int, error) {
	if err := s.SyncCities(); err != nil {
		return 0, err
	}
	return s.ingestReadings(ctx), nil
}

func (s *Scheduler) ingestReadings(ctx context.Context) int {
	active, err := s.store.GetActiveCities()
	if err != nil {
		log.Printf("scheduler: get active cities: %v", err)
		return 0
	}

	log.Printf("scheduler: ingesting readings for %d cities", len(active))
	stored := 0
	for _, c := range active {
		if ctx.Err() != nil {
			break
		}
		if c.MapOnly {
			continue
		}
		if s.ingestCity(ctx, c.Name) {
			stored++
		}
	}
	return stored
}

func (s *Scheduler) ingestCity(ctx context.Context, city string) bool {
	run, err := s.store.StartIngestRun(sourceLive, endpointAQI, &city)
	if err != nil {
		log.Printf("scheduler: start ingest run %s: %v", city, err)
	}
	complete := func() {
		if run == nil {
			return
		}
		if err := s.store.CompleteIngestRun(run); err != nil {
			log.Printf("scheduler: complete ingest run %s: %v", city, err)
		}
	}
	fail := func(err error) bool {
		log.Printf("scheduler: %s: %v", city, err)
		if run != nil {
			run.Success = false
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
		complete()
		return false
	}

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.fetcher.Fetch(fctx, city)
	if err != nil {
		var serr *liveaqi.StatusError
		if run != nil && errors.As(err, &serr) {
			run.HTTPStatus = sql.NullInt64{Int64: int64(serr.StatusCode), Valid: true}
		}
		return fail(fmt.Errorf("fetch: %w", err))
	}
	if run != nil {
		run.HTTPStatus = sql.NullInt64{Int64: 200, Valid: true}
		run.RecordsParsed = sql.NullInt64{Int64: 1, Valid: true}
	}

	reading, err := toReading(city, r, s.now().In(s.loc))
	if err != nil {
		return fail(err)
	}
	if flags := ValidateReading(&reading); len(flags) > 0 {
		if HasRejectFlag(flags) {
			return fail(fmt.Errorf("rejected reading: %v", flags))
		}
		log.Printf("scheduler: %s: quality flags %v", city, flags)
	}

	if err := s.store.InsertReading(reading); err != nil {
		return fail(fmt.Errorf("insert: %w", err))
	}
	metrics.ReadingsIngested.WithLabelValues(city).Inc()

	if run != nil {
		run.Success = true
		run.RecordsStored = sql.NullInt64{Int64: 1, Valid: true}
	}
	complete()

	log.Printf("scheduler: %s: AQI %d (%s)", city, reading.AQI, reading.Level)
	return true
}

// toReading converts a backend reading into a stored snapshot. ObservedAt
// comes from the backend's lastUpdated when it parses, else from now.
func toReading(city string, r *liveaqi.Reading, now time.Time) (models.Reading, error) {
	band, err := aqi.ClassifyFloat(r.AQI)
	if err != nil {
		return models.Reading{}, fmt.Errorf("classify %v: %w", r.AQI, err)
	}

	observed := now.Truncate(time.Minute)
	if r.LastUpdated != "" {
		if t, err := time.Parse(time.RFC3339, r.LastUpdated); err == nil {
			observed = t
		}
	}

	return models.Reading{
		City:       city,
		ObservedAt: observed,
		Source:     sourceLive,
		AQI:        aqi.Clamp(r.AQI),
		Level:      string(band.Level),
		PM25:       nullFloat(r.PM25),
		PM10:       nullFloat(r.PM10),
		O3:         nullFloat(r.O3),
		NO2:        nullFloat(r.NO2),
		SO2:        nullFloat(r.SO2),
		CO:         nullFloat(r.CO),
		RawJSON:    string(r.Raw),
	}, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
