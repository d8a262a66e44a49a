package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/airaware/internal/briefing"
	"github.com/lox/airaware/internal/dashboard"
	"github.com/lox/airaware/internal/settings"
	"github.com/lox/airaware/internal/store"
)

// chartTTL is how long a rendered trend chart is reused.
const chartTTL = 10 * time.Minute

type Server struct {
	store      *store.Store
	dash       *dashboard.Service
	settings   *settings.Manager
	briefing   *briefing.Generator
	chartCache *cache.Cache
	port       string
	loc        *time.Location
}

func NewServer(store *store.Store, dash *dashboard.Service, port string, loc *time.Location) *Server {
	return &Server{
		store:      store,
		dash:       dash,
		settings:   settings.NewManager(store, store),
		chartCache: cache.New(chartTTL, 2*chartTTL),
		port:       port,
		loc:        loc,
	}
}

// SetBriefingGenerator enables /api/briefing.
func (s *Server) SetBriefingGenerator(g *briefing.Generator) {
	s.briefing = g
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/aqi", s.handleAQI)
	mux.HandleFunc("/api/aqi/india", s.handleIndia)
	mux.HandleFunc("/api/top-cities", s.handleTopCities)
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/forecast.png", s.handleForecastChart)
	mux.HandleFunc("/api/classify", s.handleClassify)
	mux.HandleFunc("/api/bands", s.handleBands)
	mux.HandleFunc("/api/tips", s.handleTips)
	mux.HandleFunc("/api/cities", s.handleCities)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/briefing", s.handleBriefing)
	mux.Handle("/metrics", promhttp.Handler())
	return withCORS(mux)
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// withCORS lets the browser dashboard call the API from any origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
