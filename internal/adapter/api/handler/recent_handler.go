package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/V4T54L/logstore/internal/adapter/metrics"
	"github.com/V4T54L/logstore/internal/domain"
)

// RecentReader is the use case behind the recent-records route.
type RecentReader interface {
	Recent(ctx context.Context) (domain.RecentPage, error)
}

// RecentFailureResponse keeps the page shape on failure so naive callers can
// still read count and records, while Error separates it from an empty store.
type RecentFailureResponse struct {
	Count   int             `json:"count"`
	Records []domain.Record `json:"records"`
	Error   string          `json:"error"`
}

// RecentHandler serves the most recent page of records.
type RecentHandler struct {
	useCase RecentReader
	logger  *slog.Logger
	metrics *metrics.ServiceMetrics
}

// NewRecentHandler creates a new RecentHandler.
func NewRecentHandler(uc RecentReader, logger *slog.Logger, m *metrics.ServiceMetrics) *RecentHandler {
	return &RecentHandler{
		useCase: uc,
		logger:  logger.With("component", "recent_handler"),
		metrics: m,
	}
}

// ServeHTTP returns {count, records}, newest first.
func (h *RecentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic while reading recent records", "panic", rec)
			h.fail(w)
		}
	}()

	page, err := h.useCase.Recent(r.Context())
	if err != nil {
		h.fail(w)
		return
	}

	h.metrics.RecentTotal.WithLabelValues("ok").Inc()
	respondWithJSON(w, h.logger, http.StatusOK, page)
}

func (h *RecentHandler) fail(w http.ResponseWriter) {
	h.metrics.RecentTotal.WithLabelValues("error").Inc()
	respondWithJSON(w, h.logger, http.StatusInternalServerError, RecentFailureResponse{
		Count:   0,
		Records: []domain.Record{},
		Error:   internalErrorMessage,
	})
}
