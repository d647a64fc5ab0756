// Package app wires the ingestion pipeline, the query layer, the metadata
// client and the HTTP surfaces from the provided handles.
package app

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ancine-dash/internal/api"
	"ancine-dash/internal/config"
	"ancine-dash/internal/db"
	"ancine-dash/internal/db/repository"
	"ancine-dash/internal/domain"
	"ancine-dash/internal/middleware"
	"ancine-dash/internal/service/ingestion"
	"ancine-dash/internal/tmdb"
	"ancine-dash/internal/ui"
	"ancine-dash/internal/warehouse"
)

// Deps holds the external dependencies the caller opens and closes.
type Deps struct {
	Cfg    *config.Config
	DuckDB *sql.DB
	Ledger *db.Ledger // nil disables the run ledger
	Logger *slog.Logger
}

// App holds the wired components.
type App struct {
	Cfg       *config.Config
	Runs      *repository.RunRepo // nil without a ledger
	Pipeline  *ingestion.Pipeline
	Warehouse *warehouse.Warehouse
	Movies    *tmdb.Client

	logger *slog.Logger
}

// New wires every component from deps.
func New(deps Deps) *App {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Cfg: cfg, logger: logger}

	if deps.Ledger != nil {
		a.Runs = repository.NewRunRepo(deps.Ledger.Write, deps.Ledger.Read)
	}

	opts := ingestion.Options{
		DataDir:     cfg.DataDir,
		MasterFile:  cfg.MasterFile,
		Compression: cfg.ParquetCompression,
		Decoder: ingestion.DecoderOptions{
			CSVDelimiter: cfg.CSVDelimiter,
			CSVEncoding:  cfg.CSVEncoding,
			JSONKeyPath:  cfg.JSONKeyPath,
			BatchSize:    cfg.BatchSize,
		},
	}
	a.Pipeline = ingestion.NewPipeline(opts, deps.DuckDB, a.runRepository(), logger)

	a.Warehouse = warehouse.New(deps.DuckDB, cfg.MasterPath(), cfg.Columns)
	a.Movies = tmdb.New(tmdb.Options{
		APIKey:   cfg.TMDB.APIKey,
		Language: cfg.TMDB.Language,
		BaseURL:  cfg.TMDB.BaseURL,
		RPS:      cfg.TMDB.RPS,
		Timeout:  cfg.TMDB.Timeout,
		CacheDir: cfg.CacheDir,
		Logger:   logger,
	})
	return a
}

// runRepository returns the ledger as an interface, nil when absent.
func (a *App) runRepository() domain.RunRepository {
	if a.Runs == nil {
		return nil
	}
	return a.Runs
}

// Router builds the HTTP handler. ctx bounds background work owned by the
// middleware, such as rate limiter eviction.
func (a *App) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(a.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.RateLimiter(ctx, middleware.RateLimitConfig{
		RequestsPerSecond: a.Cfg.RateLimitRPS,
		Burst:             a.Cfg.RateLimitBurst,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui", http.StatusFound)
	})

	runs := a.runRepository()
	uiHandler := ui.NewHandler(a.Warehouse, a.Movies, runs, a.logger)
	r.Route("/ui", func(r chi.Router) { ui.MountRoutes(r, uiHandler) })

	apiHandler := api.NewHandler(a.Warehouse, a.Movies, runs, a.logger)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: a.Cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
		api.MountRoutes(r, apiHandler)
	})
	return r
}

// Server returns an http.Server for the router with the listen address from
// config.
func (a *App) Server(ctx context.Context) *http.Server {
	return &http.Server{
		Addr:              a.Cfg.ListenAddr,
		Handler:           a.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
}
