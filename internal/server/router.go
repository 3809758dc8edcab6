package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lorekeep/lorekeep/internal/api"
	"github.com/lorekeep/lorekeep/internal/api/handlers"
	"github.com/lorekeep/lorekeep/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator middleware.AuthValidator
	AskHandler    *handlers.AskHandler
	SearchHandler *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.AuthValidator))

		r.Post("/ask", cfg.AskHandler.Ask)
		r.Post("/search", cfg.SearchHandler.Search)
	})

	return r
}
