package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/V4T54L/logstore/internal/adapter/api/handler"
	"github.com/V4T54L/logstore/internal/adapter/api/middleware"
	"github.com/V4T54L/logstore/internal/adapter/metrics"
	"github.com/V4T54L/logstore/internal/pkg/config"
)

// NewRouter creates and configures the HTTP router for the log store.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	ingest handler.RecordIngester,
	recent handler.RecentReader,
	m *metrics.ServiceMetrics,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)

	ingestHandler := handler.NewIngestHandler(ingest, logger, cfg.MaxRequestSize, m)
	recentHandler := handler.NewRecentHandler(recent, logger, m)

	r.Get("/health", handler.Health)
	r.With(middleware.Decompress).Method(http.MethodPost, "/logs", ingestHandler)
	r.Method(http.MethodGet, "/logs", recentHandler)

	return r
}
