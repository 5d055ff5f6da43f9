package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-booking/internal/conversation"
	"github.com/wolfman30/clinic-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Conversation   *conversation.Handler
	Scheduling     *handlers.SchedulingHandler
	Health         http.Handler
	MetricsHandler http.Handler

	// RateLimiter throttles the patient-facing conversation endpoints per client IP.
	RateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		health := cfg.Health
		if health == nil {
			health = handlers.NewHealthHandler(nil)
		}
		public.Method(http.MethodGet, "/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.Conversation != nil {
		r.Route("/conversations/{clinicianID}", func(conv chi.Router) {
			if cfg.RateLimiter != nil {
				conv.Use(httpmiddleware.RateLimit(cfg.RateLimiter, cfg.Logger))
			}
			conv.Post("/messages", cfg.Conversation.Message)
			conv.Post("/jobs", cfg.Conversation.Enqueue)
		})
	}

	if cfg.Scheduling != nil {
		r.Route("/clinicians/{clinicianID}", func(clinician chi.Router) {
			clinician.Get("/slots", cfg.Scheduling.Slots)
			clinician.Get("/appointments", cfg.Scheduling.Appointments)
			clinician.Post("/appointments", cfg.Scheduling.Book)
			clinician.Get("/appointments/{appointmentID}", cfg.Scheduling.Appointment)
			clinician.Post("/appointments/{appointmentID}/complete", cfg.Scheduling.Complete)
			clinician.Post("/appointments/{appointmentID}/cancel", cfg.Scheduling.Cancel)
			clinician.Delete("/appointments/{appointmentID}", cfg.Scheduling.Delete)
		})
	}

	return r
}
