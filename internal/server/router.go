package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/verdantlabs/verdant/internal/api"
	"github.com/verdantlabs/verdant/internal/api/handlers"
	"github.com/verdantlabs/verdant/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator    middleware.AuthValidator
	ChatHandler      *handlers.ChatHandler
	DocumentHandler  *handlers.DocumentHandler
	SessionHandler   *handlers.SessionHandler
	AnalyticsHandler *handlers.AnalyticsHandler
	FaqHandler       *handlers.FaqHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Leaves room for a 20MB document upload plus multipart overhead.
	const maxBodyBytes int64 = 25 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// The widget endpoint is public: visitors are not tenant admins. The
	// tenant comes from the request body.
	r.Post("/chat", cfg.ChatHandler.Message)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", cfg.SessionHandler.List)
			r.Get("/{id}", cfg.SessionHandler.Get)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/overview", cfg.AnalyticsHandler.Overview)
			r.Get("/queries", cfg.AnalyticsHandler.ListQueries)
			r.Post("/queries/{id}/dismiss", cfg.AnalyticsHandler.DismissQuery)
			r.Post("/queries/{id}/approve", cfg.AnalyticsHandler.ApproveQuery)
			r.Delete("/queries/{id}", cfg.AnalyticsHandler.DeleteQuery)
			r.Post("/suggestions/generate", cfg.AnalyticsHandler.GenerateSuggestions)
		})

		r.Route("/faqs", func(r chi.Router) {
			r.Post("/", cfg.FaqHandler.Create)
			r.Get("/", cfg.FaqHandler.List)
			r.Delete("/{id}", cfg.FaqHandler.Delete)
		})
	})

	return r
}
