package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/airaware/internal/api"
	"github.com/lox/airaware/internal/aqi"
	"github.com/lox/airaware/internal/briefing"
	"github.com/lox/airaware/internal/cities"
	"github.com/lox/airaware/internal/dashboard"
	"github.com/lox/airaware/internal/forecast"
	"github.com/lox/airaware/internal/ingest"
	"github.com/lox/airaware/internal/liveaqi"
	"github.com/lox/airaware/internal/settings"
	"github.com/lox/airaware/internal/store"
)

type Globals struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`

	DB           string        `help:"Path to SQLite database." default:"data/airaware.db" env:"AIRAWARE_DB"`
	Timezone     string        `help:"Timezone used for calendar dates." default:"Asia/Kolkata" env:"AIRAWARE_TIMEZONE"`
	BackendURL   string        `name:"backend-url" help:"Base URL of the live AQI backend. Empty serves generated data only." env:"AIRAWARE_BACKEND_URL"`
	BackendRPS   float64       `name:"backend-rps" help:"Maximum requests per second to the backend." default:"5" env:"AIRAWARE_BACKEND_RPS"`
	BackendBurst int           `name:"backend-burst" help:"Backend request burst size." default:"10" env:"AIRAWARE_BACKEND_BURST"`
	CacheTTL     time.Duration `name:"cache-ttl" help:"How long live readings are cached." default:"5m" env:"AIRAWARE_CACHE_TTL"`
	BaseSource   string        `name:"base-source" help:"How fallback forecasts draw base values." enum:"seeded,random" default:"seeded" env:"AIRAWARE_BASE_SOURCE"`
}

type CLI struct {
	Globals

	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the HTTP API (default)."`
	Ingest   IngestCmd   `cmd:"" help:"Poll the live backend once for every city and exit."`
	Forecast ForecastCmd `cmd:"" help:"Print the 5-day forecast for a city."`
	Classify ClassifyCmd `cmd:"" help:"Classify AQI values into bands."`
	Cities   CitiesCmd   `cmd:"" help:"List or search the city registry."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("airaware"),
		kong.Description("Air quality dashboard backend for Indian cities."),
		kong.UsageOnError(),
		kong.Vars{"briefing_model": briefing.DefaultModel},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

func (g *Globals) location() *time.Location {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", g.Timezone, err)
		return time.UTC
	}
	return loc
}

func (g *Globals) openStore(loc *time.Location) (*store.Store, func(), error) {
	if err := os.MkdirAll(filepath.Dir(g.DB), 0755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if v, err := st.MigrationVersion(); err == nil {
		log.Printf("database migrated (schema version %d)", v)
	}
	return st, func() { db.Close() }, nil
}

func (g *Globals) liveClient() (*liveaqi.Client, error) {
	return liveaqi.NewClient(liveaqi.Config{
		BaseURL:  g.BackendURL,
		RPS:      g.BackendRPS,
		Burst:    g.BackendBurst,
		CacheTTL: g.CacheTTL,
	})
}

func (g *Globals) newDashboard(loc *time.Location) (*dashboard.Service, *liveaqi.Client, error) {
	client, err := g.liveClient()
	if err != nil {
		return nil, nil, err
	}
	var base forecast.BaseSource = forecast.SeededBase{}
	if g.BaseSource == "random" {
		base = forecast.RandomBase{}
	}
	var backend dashboard.Backend
	if client.Configured() {
		backend = client
	} else {
		log.Println("no backend URL configured, serving generated data")
	}
	return dashboard.NewService(backend, loc, base), client, nil
}

type ServeCmd struct {
	Port         string        `help:"HTTP server port." default:"8080" env:"AIRAWARE_PORT,PORT"`
	NoPoll       bool          `name:"no-poll" help:"Disable polling (server only, for local dev)." env:"AIRAWARE_NO_POLL"`
	PollInterval time.Duration `name:"poll-interval" help:"Backend poll interval." default:"15m" env:"AIRAWARE_POLL_INTERVAL"`
	BriefingDir  string        `name:"briefing-cache" help:"Directory for cached briefings." default:"data/briefings" env:"AIRAWARE_BRIEFING_CACHE"`
	OpenAIKey    string        `name:"openai-api-key" help:"OpenAI API key. Empty disables briefings." env:"OPENAI_API_KEY"`
	OpenAIModel  string        `name:"openai-model" help:"Chat model used for briefings." default:"${briefing_model}" env:"AIRAWARE_OPENAI_MODEL"`
}

func (c *ServeCmd) Run(g *Globals) error {
	loc := g.location()
	st, closeDB, err := g.openStore(loc)
	if err != nil {
		return err
	}
	defer closeDB()

	dash, client, err := g.newDashboard(loc)
	if err != nil {
		return err
	}

	server := api.NewServer(st, dash, c.Port, loc)
	if c.OpenAIKey != "" {
		server.SetBriefingGenerator(briefing.NewGenerator(c.OpenAIKey, c.OpenAIModel, briefing.NewCache(c.BriefingDir)))
	} else {
		log.Println("Briefings disabled: OPENAI_API_KEY not set")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case c.NoPoll:
		log.Println("polling disabled (--no-poll)")
	case !client.Configured():
		log.Println("polling disabled: no backend URL")
	default:
		scheduler := ingest.NewScheduler(st, client, loc)
		scheduler.SetInterval(c.PollInterval)
		go scheduler.Run(ctx)
	}

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type IngestCmd struct{}

func (c *IngestCmd) Run(g *Globals) error {
	loc := g.location()
	st, closeDB, err := g.openStore(loc)
	if err != nil {
		return err
	}
	defer closeDB()

	client, err := g.liveClient()
	if err != nil {
		return err
	}
	if !client.Configured() {
		return liveaqi.ErrNotConfigured
	}

	log.Println("running single ingestion")
	n, err := ingest.NewScheduler(st, client, loc).IngestOnce(context.Background())
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	log.Printf("done: stored %d readings", n)
	return nil
}

type ForecastCmd struct {
	City  string `arg:"" optional:"" help:"City name (default Chennai)."`
	Date  string `help:"Start date as YYYY-MM-DD (default today)."`
	Units string `help:"Temperature units." enum:"metric,imperial" default:"metric"`
	JSON  bool   `help:"Print JSON instead of a table."`
}

func (c *ForecastCmd) Run(g *Globals) error {
	loc := g.location()
	city := cities.Default()
	if c.City != "" {
		var ok bool
		if city, ok = cities.Lookup(c.City); !ok {
			return fmt.Errorf("%w: %s", cities.ErrUnknownCity, c.City)
		}
	}

	start := time.Now().In(loc)
	if c.Date != "" {
		d, err := time.ParseInLocation("2006-01-02", c.Date, loc)
		if err != nil {
			return fmt.Errorf("parse date: %w", err)
		}
		start = d
	}

	dash, _, err := g.newDashboard(loc)
	if err != nil {
		return err
	}
	report, err := dash.Forecast(context.Background(), city, start)
	if err != nil {
		return err
	}

	if c.JSON {
		return printJSON(report)
	}

	prefs := settings.Defaults()
	prefs.Units = settings.Units(c.Units)

	fmt.Printf("%s, %s (%s)\n", report.City.Name, report.City.State, report.Source)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tDATE\tTEMP\tCONDITION\tHUMIDITY\tWIND\tAQI\tBAND")
	for _, d := range report.Days {
		fmt.Fprintf(tw, "%s\t%s\t%d-%d%s\t%s %s\t%d%%\t%d km/h\t%d\t%s\n",
			d.DayLabel, d.Date, prefs.ConvertTemp(d.TempMin), prefs.ConvertTemp(d.TempMax), prefs.TempUnit(),
			d.Condition.Icon(), d.Condition,
			d.HumidityPct, d.WindSpeedKmh, d.AQI, d.Band.Label)
	}
	return tw.Flush()
}

type ClassifyCmd struct {
	Values []string `arg:"" help:"AQI values to classify."`
	JSON   bool     `help:"Print JSON instead of a table."`
}

func (c *ClassifyCmd) Run(g *Globals) error {
	type result struct {
		AQI  float64  `json:"aqi"`
		Band aqi.Band `json:"band"`
	}
	var results []result
	for _, raw := range c.Values {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", aqi.ErrInvalidInput, raw)
		}
		band, err := aqi.ClassifyFloat(v)
		if err != nil {
			return err
		}
		results = append(results, result{AQI: v, Band: band})
	}

	if c.JSON {
		return printJSON(results)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AQI\tBAND\tCOLOR\tADVISORY")
	for _, r := range results {
		fmt.Fprintf(tw, "%g\t%s\t%s\t%s\n", r.AQI, r.Band.Label, r.Band.Color, r.Band.Advisory)
	}
	return tw.Flush()
}

type CitiesCmd struct {
	Query string `arg:"" optional:"" help:"Search by name or state."`
}

func (c *CitiesCmd) Run(g *Globals) error {
	list := cities.All()
	if c.Query != "" {
		list = cities.Search(c.Query)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CITY\tSTATE\tLAT\tLNG")
	for _, city := range list {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\n", city.Name, city.State, city.Lat, city.Lng)
	}
	return tw.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
