package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)

	router.Post("/predict", h.predict)

	router.Group(func(r chi.Router) {
		r.Get("/api/health", h.health)
		r.Get("/api/stats", h.stats)
		r.Get("/api/history", h.recentHistory)
	})

	router.Group(func(r chi.Router) {
		r.Post("/api/auth/signup", h.signUp)
		r.Post("/api/auth/login", h.signIn)
		r.Post("/api/auth/logout", h.signOut)
		r.Get("/api/user/profile", h.profile)
	})

	return router
}
