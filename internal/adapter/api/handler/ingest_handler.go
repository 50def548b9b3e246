package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/V4T54L/logstore/internal/adapter/api/middleware"
	"github.com/V4T54L/logstore/internal/adapter/metrics"
	"github.com/V4T54L/logstore/internal/domain"
	"github.com/V4T54L/logstore/internal/usecase"
)

// RecordIngester is the use case behind the ingest route.
type RecordIngester interface {
	Ingest(ctx context.Context, payload []byte) (usecase.IngestResult, error)
}

// IngestResponse is the body of every ingest response.
type IngestResponse struct {
	Success    bool   `json:"success"`
	ID         string `json:"id,omitempty"`
	OccurredAt string `json:"occurredAt,omitempty"`
	Message    string `json:"message,omitempty"`
}

// IngestHandler handles HTTP requests for record ingestion.
type IngestHandler struct {
	useCase     RecordIngester
	logger      *slog.Logger
	maxBodySize int64
	metrics     *metrics.ServiceMetrics
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(uc RecordIngester, logger *slog.Logger, maxBodySize int64, m *metrics.ServiceMetrics) *IngestHandler {
	return &IngestHandler{
		useCase:     uc,
		logger:      logger.With("component", "ingest_handler"),
		maxBodySize: maxBodySize,
		metrics:     m,
	}
}

// ServeHTTP processes a single-record ingest request.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic while ingesting record", "panic", rec)
			h.fail(w, http.StatusInternalServerError, "error", internalErrorMessage)
		}
	}()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			h.fail(w, http.StatusRequestEntityTooLarge, "too_large", "Payload too large")
		case errors.Is(err, middleware.ErrMalformedEncoding):
			h.fail(w, http.StatusBadRequest, "invalid", "Malformed request body encoding")
		default:
			h.logger.Warn("failed to read request body", "error", err)
			h.fail(w, http.StatusBadRequest, "invalid", "Failed to read request body")
		}
		return
	}

	res, err := h.useCase.Ingest(r.Context(), body)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			h.fail(w, http.StatusBadRequest, "invalid", err.Error())
			return
		}
		// The use case already logged the cause with the record id.
		h.fail(w, http.StatusInternalServerError, "error", internalErrorMessage)
		return
	}

	h.metrics.IngestTotal.WithLabelValues("accepted").Inc()
	h.metrics.BytesTotal.Add(float64(len(body)))
	respondWithJSON(w, h.logger, http.StatusCreated, IngestResponse{
		Success:    true,
		ID:         res.ID,
		OccurredAt: res.OccurredAt,
	})
}

func (h *IngestHandler) fail(w http.ResponseWriter, code int, status, message string) {
	h.metrics.IngestTotal.WithLabelValues(status).Inc()
	respondWithJSON(w, h.logger, code, IngestResponse{Success: false, Message: message})
}
