// Package server wires the dataset, sessions, DuckDB and the HTTP surface of
// the cluster map dashboard.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-covid/internal/api"
	"github.com/joeblew999/plat-covid/internal/api/dashboard"
	"github.com/joeblew999/plat-covid/internal/control"
	"github.com/joeblew999/plat-covid/internal/daterange"
	"github.com/joeblew999/plat-covid/internal/dataset"
	"github.com/joeblew999/plat-covid/internal/db"
	"github.com/joeblew999/plat-covid/internal/humastar"
	"github.com/joeblew999/plat-covid/internal/service"
	"github.com/joeblew999/plat-covid/internal/templates"
)

const pageTitle = "COVID-19 Singapore Cluster Map"

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string // Overrides for the embedded GeoJSON and the DuckDB file
	WebDir  string // Path to web/ directory for static files and template overrides

	// StartDate is the first day of the slider range (YYYY-MM-DD).
	StartDate string
	// Now is the clock the date range is computed from, once, in New.
	Now func() time.Time

	// RedisURL enables session persistence when set.
	RedisURL   string
	SessionTTL time.Duration

	Logger *zap.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	config   Config
	logger   *zap.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
	links    *humastar.Links
	redis    *service.RedisRepository
}

// New creates a new dashboard server. It fails if the datasets are
// malformed or the configured Redis is unreachable.
func New(cfg Config) (*Server, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.StartDate == "" {
		cfg.StartDate = daterange.StartDate
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger

	ds, err := dataset.Load(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("loading datasets: %w", err)
	}
	rng, err := daterange.FromClock(cfg.StartDate, cfg.Now)
	if err != nil {
		return nil, fmt.Errorf("date range: %w", err)
	}

	renderer, err := templates.New(fragmentsDir(cfg.WebDir))
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		renderer: renderer,
		links:    humastar.NewLinks("/health", "dashboard"),
	}

	var repo service.SessionRepository = service.NewMemoryRepository(cfg.SessionTTL)
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.redis, err = service.NewRedisRepository(ctx, cfg.RedisURL, cfg.SessionTTL, logger)
		if err != nil {
			return nil, err
		}
		repo = s.redis
		logger.Info("Session persistence enabled", zap.Duration("ttl", cfg.SessionTTL))
	}

	s.services = &api.Services{
		Sessions: service.NewSessionService(ds, rng, repo, service.NewEventBus(), logger),
		Source:   service.NewSourceService(cfg.DataDir),
	}

	// DuckDB is optional; the dashboard works without it.
	if conn, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: "covid"}); err != nil {
		logger.Warn("DuckDB unavailable", zap.Error(err))
	} else if err := db.LoadCases(context.Background(), conn, ds.Cases); err != nil {
		logger.Warn("Failed to load cases into DuckDB", zap.Error(err))
	} else if err := db.Lockdown(context.Background(), conn); err != nil {
		// The query endpoint is public; never serve it without the lockdown.
		logger.Warn("DuckDB query endpoint disabled", zap.Error(err))
	} else {
		s.db = conn
	}

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-covid API", "1.0.0")
	humaConfig.Info.Description = "COVID-19 cluster map dashboard: session state, case and cluster data, and Datastar control panel endpoints."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, s.links.Transformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	s.handler = requestLogger(logger, s.mux)

	logger.Info("Server configured",
		zap.Int("cases", len(ds.Cases.Features)),
		zap.Int("days", rng.Days),
		zap.Bool("duckdb", s.db != nil),
	)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sessions returns the session service.
func (s *Server) Sessions() *service.SessionService {
	return s.services.Sessions
}

// PruneSessions drops idle in-memory sessions every interval until ctx is
// done.
func (s *Server) PruneSessions(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.services.Sessions.Prune(maxIdle); n > 0 {
				s.logger.Debug("Pruned idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return err
		}
	}
	return db.Close()
}

func (s *Server) routes() {
	// REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.redis != nil, s.services.Sessions.Range()).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	// Control panel SSE routes using Huma + Datastar SDK
	dashboard.NewHandler(s.services.Sessions, s.renderer, s.logger).RegisterRoutes(s.humaAPI)

	s.links.Discover(s.humaAPI)

	// GeoJSON feeds for the map
	s.mux.HandleFunc("GET /data/cases.geojson", s.handleCases)
	s.mux.HandleFunc("GET /data/transmission.geojson", s.handleTransmission)

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("GET /{$}", s.handleRoot)
}

type pageData struct {
	Title   string
	Signals string
	Panel   template.HTML
}

// handleRoot renders the dashboard, creating a session when the request
// carries none or an expired one.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	var id string
	if c, err := r.Cookie(service.SessionCookie); err == nil {
		id = c.Value
	}
	id, st, err := s.services.Sessions.GetOrCreate(r.Context(), id)
	if err != nil {
		s.logger.Error("Failed to start session", zap.Error(err))
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     service.SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	state := st.State()
	panel := control.New(control.PropsFrom(state), nil)
	panelHTML, err := panel.Render(s.renderer)
	if err != nil {
		s.logger.Error("Failed to render control panel", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	signals := panel.View().Signals()
	signals["map"] = dashboard.MapSignalsOf(state, nil)
	signals["error"] = ""
	signalsJSON, err := json.Marshal(signals)
	if err != nil {
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	html, err := s.renderer.Render("dashboard", pageData{
		Title:   pageTitle,
		Signals: string(signalsJSON),
		Panel:   template.HTML(panelHTML),
	})
	if err != nil {
		s.logger.Error("Failed to render dashboard", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// handleCases serves the case points, without those dated after the
// session's end of range.
func (s *Server) handleCases(w http.ResponseWriter, r *http.Request) {
	ds := s.services.Sessions.Dataset()
	fc := ds.Cases
	if c, err := r.Cookie(service.SessionCookie); err == nil {
		if st, err := s.services.Sessions.Get(r.Context(), c.Value); err == nil {
			fc = ds.CasesUntil(st.State().Control.DateEndRange)
		}
	}
	s.writeGeoJSON(w, fc)
}

func (s *Server) handleTransmission(w http.ResponseWriter, r *http.Request) {
	s.writeGeoJSON(w, s.services.Sessions.Dataset().Transmission)
}

func (s *Server) writeGeoJSON(w http.ResponseWriter, v json.Marshaler) {
	data, err := v.MarshalJSON()
	if err != nil {
		s.logger.Error("Failed to encode GeoJSON", zap.Error(err))
		http.Error(w, "failed to encode GeoJSON", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func fragmentsDir(webDir string) string {
	if webDir == "" {
		return ""
	}
	dir := filepath.Join(webDir, "templates", "fragments")
	if _, err := os.Stat(dir); err != nil {
		return ""
	}
	return dir
}

