package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/idopont/booking/internal/booking"
	"github.com/idopont/booking/internal/registry"
)

type RouterConfig struct {
	Manager  *booking.Manager
	Slots    *booking.SlotEngine
	Reports  *booking.Reports
	Registry *registry.Service
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	if cfg.PgPool != nil && cfg.Redis != nil {
		health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
		r.Get("/health/live", health.Liveness)
		r.Get("/health/ready", health.Readiness)
	}

	// Booking lifecycle
	r.Post("/bookings", createBookingHandler(cfg.Manager))
	r.Post("/bookings/{id}/status", updateBookingStatusHandler(cfg.Manager))
	r.Delete("/bookings/{id}", deleteBookingHandler(cfg.Manager))

	// Availability and reporting
	r.Get("/doctors/{id}/slots/free", queryFreeSlotsHandler(cfg.Slots))
	r.Get("/doctors/{id}/schedule", doctorScheduleHandler(cfg.Reports))
	r.Get("/patients/{id}/bookings", patientHistoryHandler(cfg.Reports))
	r.Get("/reports/free-slots", freeSlotCountHandler(cfg.Reports))

	// Administrative registry
	r.Route("/admin", func(r chi.Router) {
		r.Post("/users", createUserHandler(cfg.Registry))
		r.Delete("/users/{id}", deleteUserHandler(cfg.Registry))
		r.Post("/patients", createPatientHandler(cfg.Registry))
		r.Post("/doctors", createDoctorHandler(cfg.Registry))
		r.Post("/clinics", createClinicHandler(cfg.Registry))
		r.Post("/services", createServiceHandler(cfg.Registry))
		r.Delete("/services/{id}", deleteServiceHandler(cfg.Registry))
		r.Put("/doctors/{id}/services/{serviceID}", setDoctorServiceHandler(cfg.Registry))
		r.Post("/slots", createSlotHandler(cfg.Registry))
	})

	return r
}
