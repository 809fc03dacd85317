package app

import (
	"database/sql"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"quizforge/internal/app/observability"
	"quizforge/internal/auth"
	"quizforge/internal/bank"
	"quizforge/internal/quiz"
	"quizforge/internal/session"
)

type Deps struct {
	DB     *sql.DB // optional
	Banks  *bank.Registry
	Store  session.Store
	Admin  *auth.AdminGuard
	Logger *zap.Logger
}

func NewRouter(cfg Config, deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	banks := deps.Banks
	if banks == nil {
		banks = bank.NewRegistry(logger)
	}
	admin := deps.Admin
	if admin == nil {
		admin, _ = auth.NewAdminGuard("", logger)
	}

	metrics := observability.NewCollector(deps.DB, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	tmpl := template.Must(template.ParseGlob("web/templates/layout/*.html"))
	template.Must(tmpl.ParseGlob("web/templates/pages/*.html"))

	sessionSvc := session.NewService(session.ServiceConfig{
		Banks:    banks,
		Store:    deps.Store,
		Compiler: quiz.NewCompiler(quiz.WithLogger(logger)),
		TTL:      cfg.SessionTTL(),
		Logger:   logger,
		Recorder: metrics,
	})
	var importer bank.Importer
	if deps.DB != nil {
		importer = bank.PostgresImporter(deps.DB, banks)
	}
	bankHandler := bank.NewHandler(banks, importer, logger)

	page := &pages{
		tmpl:     tmpl,
		sessions: sessionSvc,
		banks:    banks,
		logger:   logger,
		secure:   cfg.IsProduction(),
	}

	selectLimiter := NewIPRateLimiter(cfg.SelectRateLimitPerMin, time.Minute)
	startLimiter := NewIPRateLimiter(cfg.SessionRateLimitPerMin, time.Minute)
	sessionHandler := session.NewHandler(sessionSvc, logger, session.WithStreamLimiter(selectLimiter))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", metrics.MetricsHandler)

	r.Get("/", page.index)
	r.With(RateLimitMiddleware(startLimiter)).Get("/quiz/{bank}", func(w http.ResponseWriter, r *http.Request) {
		page.quiz(w, r, chi.URLParam(r, "bank"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/banks", bankHandler.List)
		api.Get("/banks/template.xlsx", bankHandler.ExcelTemplate)

		api.Group(func(sess chi.Router) {
			sess.Use(CSRFMiddleware(cfg.CSRFEnforced))
			sess.With(RateLimitMiddleware(startLimiter)).Post("/sessions", sessionHandler.Start)
			sess.Get("/sessions/{id}", sessionHandler.Get)
			sess.With(RateLimitMiddleware(selectLimiter)).Post("/sessions/{id}/select", sessionHandler.Select)
			sess.With(RateLimitMiddleware(startLimiter)).Get("/sessions/{id}/ws", sessionHandler.Stream)
		})

		api.Group(func(adm chi.Router) {
			adm.Use(admin.Require)
			adm.Post("/admin/banks/reload", bankHandler.Reload)
			adm.Post("/admin/banks/{bank}/import", bankHandler.Import)
		})
	})

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))

	return r
}
