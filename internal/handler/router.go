package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/segyhp/loan-workflow/pkg/response"
)

// NewRouter wires health and workflow routes behind the logging, recovery and CORS middleware
func NewRouter(workflow *WorkflowHandler, health *HealthHandler, logger *slog.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(response.LoggingMiddleware(logger))
	router.Use(response.RecoveryMiddleware(logger))
	router.Use(response.CORSMiddleware)

	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	workflow.RegisterRoutes(router)

	return router
}
