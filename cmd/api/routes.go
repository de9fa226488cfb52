package main

import (
	"net/http"

	"github.com/rs/zerolog"

	"payalert/internal/shared/config"
	"payalert/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", deps.HealthHandler.HandleHealth)

	// Ingestion, authenticated by the shared webhook secret
	mux.HandleFunc("POST /api/ingest/email", deps.IngestHandler.HandleEmail)
	mux.HandleFunc("POST /api/ingest/poll", deps.IngestHandler.HandlePoll)

	// Dashboard and kiosk routes
	viewer := middleware.CompanyAccess(deps.Companies)

	mux.Handle("GET /api/transactions/", viewer(http.HandlerFunc(deps.TransactionHandler.HandleListTransactions)))
	mux.Handle("GET /api/transactions/stream", viewer(http.HandlerFunc(deps.StreamHandler.HandleStream)))
	mux.Handle("PATCH /api/transactions/{id}", viewer(http.HandlerFunc(deps.TransactionHandler.HandleAnnotateTransaction)))
	mux.Handle("POST /api/devices", viewer(http.HandlerFunc(deps.DeviceHandler.HandleRegisterDevice)))

	// Apply global middleware
	handler := middleware.CORS(cfg.Server.AllowedHosts)(mux)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.Recover(handler)
	handler = middleware.Logging(log)(handler)

	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Info().Msg("TLS security middleware enabled (HSTS)")
	}

	return handler
}
