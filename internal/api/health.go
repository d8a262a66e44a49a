package api

import (
	"net/http"
	"time"

	"github.com/lox/airaware/internal/cities"
)

const staleThreshold = 60 * time.Minute

type CityHealth struct {
	City       string    `json:"city"`
	LastSeen   time.Time `json:"lastSeen,omitzero"`
	AgeMinutes int       `json:"ageMinutes"`
	Stale      bool      `json:"stale"`
}

type IngestHealth struct {
	Endpoint    string `json:"endpoint"`
	TotalRuns   int    `json:"totalRuns"`
	FailedRuns  int    `json:"failedRuns"`
	Records     int64  `json:"records"`
	LastFailure string `json:"lastFailure,omitempty"`
}

type HealthStatus struct {
	Status string         `json:"status"`
	Cities []CityHealth   `json:"cities,omitempty"`
	Ingest []IngestHealth `json:"ingest,omitempty"`
	Errors []string       `json:"errors,omitempty"`
}

// handleHealth reports "ok" while the database answers. Cities whose stored
// readings have gone stale are listed; cities never polled are omitted so a
// server running without the poller stays healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthStatus{Status: "error", Errors: []string{err.Error()}})
		return
	}

	health := HealthStatus{Status: "ok"}
	now := time.Now()
	for _, c := range cities.All() {
		rd, err := s.store.GetLatestReading(c.Name)
		if err != nil {
			health.Errors = append(health.Errors, c.Name+": "+err.Error())
			continue
		}
		if rd == nil {
			continue
		}
		age := now.Sub(rd.ObservedAt)
		ch := CityHealth{
			City:       c.Name,
			LastSeen:   rd.ObservedAt,
			AgeMinutes: int(age.Minutes()),
			Stale:      age > staleThreshold,
		}
		if ch.Stale {
			health.Status = "degraded"
		}
		health.Cities = append(health.Cities, ch)
	}

	summaries, err := s.store.GetIngestHealth(1)
	if err != nil {
		health.Errors = append(health.Errors, "ingest: "+err.Error())
	}
	failures, err := s.store.GetRecentIngestErrors(20)
	if err != nil {
		health.Errors = append(health.Errors, "ingest errors: "+err.Error())
	}
	for _, sum := range summaries {
		ih := IngestHealth{
			Endpoint:   sum.Endpoint,
			TotalRuns:  sum.TotalRuns,
			FailedRuns: sum.FailedRuns,
			Records:    sum.TotalRecords,
		}
		for _, f := range failures {
			if f.Endpoint == sum.Endpoint && f.ErrorMessage.Valid {
				ih.LastFailure = f.ErrorMessage.String
				break
			}
		}
		health.Ingest = append(health.Ingest, ih)
	}

	status := http.StatusOK
	if len(health.Errors) > 0 {
		health.Status = "error"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
