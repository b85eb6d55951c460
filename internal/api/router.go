package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/aidoctor/internal/api/handlers"
	"github.com/nikhilbhutani/aidoctor/internal/api/middleware"
	"github.com/nikhilbhutani/aidoctor/internal/auth"
	"github.com/nikhilbhutani/aidoctor/internal/config"
)

// Services are the already-wired components the routes delegate to.
type Services struct {
	Analyzer handlers.Analyzer
	Speech   handlers.Speech
	History  handlers.HistoryLister // nil without a database
	Checks   map[string]handlers.Pinger
}

type Router struct {
	mux *chi.Mux
	cfg *config.Config
	svc Services
}

func NewRouter(cfg *config.Config, svc Services) *Router {
	return &Router{
		mux: chi.NewRouter(),
		cfg: cfg,
		svc: svc,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	health := handlers.NewHealthHandler(rt.svc.Checks)
	r.Get("/api/health", health.Health)
	r.Get("/api/ready", health.Ready)

	audioH := handlers.NewAudioHandler(rt.svc.Speech)
	r.Get("/audio/{session_id}", audioH.Get)

	// Endpoints that call paid providers
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rt.cfg.Server.RateLimitRPM))
		if rt.cfg.Auth.JWTSecret != "" {
			r.Use(auth.NewJWTMiddleware(rt.cfg.Auth.JWTSecret).Authenticate)
		}

		analyzeH := handlers.NewAnalyzeHandler(rt.svc.Analyzer, rt.cfg.Server.MaxUploadMB)
		r.Post("/api/analyze", analyzeH.Analyze)
		r.Post("/text-to-speech", audioH.TextToSpeech)

		if rt.svc.History != nil {
			historyH := handlers.NewHistoryHandler(rt.svc.History)
			r.Get("/api/analyses", historyH.List)
		}
	})

	if dir := rt.cfg.Server.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		}
	}

	return r
}
