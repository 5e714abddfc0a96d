// internal/router/router.go
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/FACorreiaa/go-trip-planner/internal/api/trip"
)

// Config contains dependencies needed for the router setup
type Config struct {
	TripHandler trip.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are expected to be
// applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/trips", func(r chi.Router) {
			r.Post("/generate", cfg.TripHandler.ChatHandler)
			r.Get("/generate", cfg.TripHandler.ProgressHandler)
			r.Get("/sessions/{sessionID}", cfg.TripHandler.GetSessionHandler)
			r.Delete("/sessions/{sessionID}", cfg.TripHandler.DeleteSessionHandler)
			r.Get("/itineraries/{itineraryID}", cfg.TripHandler.GetItineraryHandler)
		})
	})

	return r
}
