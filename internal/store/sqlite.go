package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lox/airaware/internal/models"
	"github.com/lox/airaware/internal/settings"
)

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) UpsertCity(c models.City) error {
	_, err := s.db.Exec(`
		INSERT INTO cities (name, state, latitude, longitude, map_only, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			state = excluded.state,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			map_only = excluded.map_only,
			active = excluded.active
	`, c.Name, c.State, c.Lat, c.Lng, c.MapOnly, c.Active)
	return err
}

func (s *Store) GetActiveCities() ([]models.City, error) {
	rows, err := s.db.Query(`SELECT name, state, latitude, longitude, map_only, active FROM cities WHERE active = TRUE ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cities []models.City
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.Name, &c.State, &c.Lat, &c.Lng, &c.MapOnly, &c.Active); err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// InsertReading stores a snapshot. Duplicate (city, observed_at, source) rows are ignored.
func (s *Store) InsertReading(r models.Reading) error {
	_, err := s.db.Exec(`
		INSERT INTO readings (city, observed_at, source, aqi, level, pm25, pm10, o3, no2, so2, co, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(city, observed_at, source) DO NOTHING
	`, r.City, r.ObservedAt.UTC(), r.Source, r.AQI, r.Level, r.PM25, r.PM10, r.O3, r.NO2, r.SO2, r.CO, r.RawJSON)
	return err
}

const readingColumns = `id, city, observed_at, source, aqi, level, pm25, pm10, o3, no2, so2, co, raw_json, created_at`

func scanReading(sc interface{ Scan(...any) error }) (models.Reading, error) {
	var r models.Reading
	var level sql.NullString
	var raw sql.NullString
	err := sc.Scan(&r.ID, &r.City, &r.ObservedAt, &r.Source, &r.AQI, &level, &r.PM25, &r.PM10, &r.O3, &r.NO2, &r.SO2, &r.CO, &raw, &r.CreatedAt)
	r.Level = level.String
	r.RawJSON = raw.String
	return r, err
}

// GetLatestReading returns the most recent reading for city, or nil if none exist.
func (s *Store) GetLatestReading(city string) (*models.Reading, error) {
	row := s.db.QueryRow(`
		SELECT `+readingColumns+`
		FROM readings
		WHERE city = ?
		ORDER BY observed_at DESC
		LIMIT 1
	`, city)

	r, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetReadings(city string, start, end time.Time) ([]models.Reading, error) {
	rows, err := s.db.Query(`
		SELECT `+readingColumns+`
		FROM readings
		WHERE city = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`, city, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func (s *Store) GetReadingStats(city string, start, end time.Time) (models.ReadingStats, error) {
	var st models.ReadingStats
	err := s.db.QueryRow(`
		SELECT COUNT(*), MIN(aqi), MAX(aqi), AVG(aqi)
		FROM readings
		WHERE city = ? AND observed_at >= ? AND observed_at <= ?
	`, city, start.UTC(), end.UTC()).Scan(&st.Count, &st.MinAQI, &st.MaxAQI, &st.AvgAQI)
	return st, err
}

// LoadSettings implements settings.Loader.
func (s *Store) LoadSettings(ctx context.Context, profile string) (settings.Settings, bool, error) {
	var st settings.Settings
	var name, email sql.NullString
	var units string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, email, language, units, notifications, accent, share_anon
		FROM settings
		WHERE profile = ?
	`, profile).Scan(&name, &email, &st.Language, &units, &st.Notifications, &st.Accent, &st.ShareAnon)
	if err == sql.ErrNoRows {
		return settings.Settings{}, false, nil
	}
	if err != nil {
		return settings.Settings{}, false, err
	}
	st.Name = name.String
	st.Email = email.String
	st.Units = settings.Units(units)
	return st, true, nil
}

// SaveSettings implements settings.Saver.
func (s *Store) SaveSettings(ctx context.Context, profile string, st settings.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (profile, name, email, language, units, notifications, accent, share_anon, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			language = excluded.language,
			units = excluded.units,
			notifications = excluded.notifications,
			accent = excluded.accent,
			share_anon = excluded.share_anon,
			updated_at = excluded.updated_at
	`, profile, st.Name, st.Email, st.Language, string(st.Units), st.Notifications, st.Accent, st.ShareAnon, time.Now().UTC())
	return err
}

// DeleteSettings implements settings.Saver.
func (s *Store) DeleteSettings(ctx context.Context, profile string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE profile = ?`, profile)
	return err
}

var (
	_ settings.Loader = (*Store)(nil)
	_ settings.Saver  = (*Store)(nil)
)
