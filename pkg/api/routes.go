package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SetupRoutes registers the API routes on router
func SetupRoutes(router *mux.Router, handlers *Handlers) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/score", handlers.ScorePair).Methods(http.MethodPost)

	jobs := api.PathPrefix("/jobs").Subrouter()
	jobs.HandleFunc("", handlers.SubmitJob).Methods(http.MethodPost)
	jobs.HandleFunc("", handlers.ListJobs).Methods(http.MethodGet)
	jobs.HandleFunc("/{jobId}", handlers.GetJob).Methods(http.MethodGet)
	jobs.HandleFunc("/{jobId}", handlers.CancelJob).Methods(http.MethodDelete)

	api.HandleFunc("/solvers", handlers.ListSolvers).Methods(http.MethodGet)
	api.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// NewRouter builds the complete handler with middleware and CORS
func NewRouter(handlers *Handlers, allowedOrigins []string, logger zerolog.Logger) http.Handler {
	router := mux.NewRouter()
	SetupRoutes(router, handlers)

	router.Use(LoggingMiddleware(logger))
	router.Use(RecoveryMiddleware(logger))

	return CORS(allowedOrigins, router)
}
