/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. rateLimit:  Per-IP token bucket

ROUTE GROUPS:
  /api/employees/{id}/attendance/*  Session state machine
  /api/employees/{id}/leave/*       Eligibility, balance, submission
  /api/holidays/*                   Calendar administration
  /api/subscriptions                Web push registration
  /api/reports/*                    xlsx downloads

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(rateLimit(h.Cfg.Server.RateLimitPerSec))

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees/{id}", func(r chi.Router) {
			r.Route("/attendance", func(r chi.Router) {
				r.Get("/", h.GetAttendance)
				r.Post("/check-in", h.CheckIn)
				r.Post("/break-in", h.BreakIn)
				r.Post("/break-out", h.BreakOut)
				r.Post("/check-out", h.CheckOut)
			})

			r.Route("/leave", func(r chi.Router) {
				r.Get("/eligibility", h.GetEligibility)
				r.Get("/balance", h.GetBalance)
				r.Post("/requests", h.SubmitLeave)
			})
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Post("/subscriptions", h.Subscribe)
		r.Get("/reports/attendance", h.AttendanceReport)
	})

	return r
}
