package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/V4T54L/logstore/internal/adapter/metrics"
	"github.com/V4T54L/logstore/internal/domain"
	"github.com/V4T54L/logstore/internal/usecase"
)

// MockIngestUseCase is a mock implementation of RecordIngester.
type MockIngestUseCase struct {
	IngestFunc func(ctx context.Context, payload []byte) (usecase.IngestResult, error)
}

func (m *MockIngestUseCase) Ingest(ctx context.Context, payload []byte) (usecase.IngestResult, error) {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, payload)
	}
	return usecase.IngestResult{ID: "id-1", OccurredAt: "2024-01-01T00:00:00.000000Z"}, nil
}

func TestIngestHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		maxSize        int64
		ingestErr      error
		panics         bool
		expectedStatus int
		expectedBody   IngestResponse
		metricStatus   string
	}{
		{
			name:           "Valid Record",
			body:           `{"severity":"info","message":"hello"}`,
			expectedStatus: http.StatusCreated,
			expectedBody:   IngestResponse{Success: true, ID: "id-1", OccurredAt: "2024-01-01T00:00:00.000000Z"},
			metricStatus:   "accepted",
		},
		{
			name:           "Validation Failure",
			body:           `{"severity":"loud","message":"hello"}`,
			ingestErr:      &domain.ValidationError{Reason: "Invalid severity. Must be one of: info, warning, error"},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   IngestResponse{Success: false, Message: "Invalid severity. Must be one of: info, warning, error"},
			metricStatus:   "invalid",
		},
		{
			name:           "Storage Unavailable Is Not Leaked",
			body:           `{"severity":"info","message":"hello"}`,
			ingestErr:      fmt.Errorf("%w: dial tcp 10.1.2.3:6379: connection refused", domain.ErrStorageUnavailable),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   IngestResponse{Success: false, Message: "Internal server error"},
			metricStatus:   "error",
		},
		{
			name:           "Storage Rejected Is Not Leaked",
			body:           `{"severity":"info","message":"hello"}`,
			ingestErr:      fmt.Errorf("%w: duplicate key", domain.ErrStorageRejected),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   IngestResponse{Success: false, Message: "Internal server error"},
			metricStatus:   "error",
		},
		{
			name:           "Panic Still Yields Shape",
			body:           `{"severity":"info","message":"hello"}`,
			panics:         true,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   IngestResponse{Success: false, Message: "Internal server error"},
			metricStatus:   "error",
		},
		{
			name:           "Payload Too Large",
			body:           `{"severity":"info","message":"` + strings.Repeat("a", 100) + `"}`,
			maxSize:        50,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedBody:   IngestResponse{Success: false, Message: "Payload too large"},
			metricStatus:   "too_large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewServiceMetrics(prometheus.NewRegistry())
			mockUseCase := &MockIngestUseCase{
				IngestFunc: func(ctx context.Context, payload []byte) (usecase.IngestResult, error) {
					if tt.panics {
						panic("unexpected")
					}
					if tt.ingestErr != nil {
						return usecase.IngestResult{}, tt.ingestErr
					}
					return usecase.IngestResult{ID: "id-1", OccurredAt: "2024-01-01T00:00:00.000000Z"}, nil
				},
			}
			maxSize := tt.maxSize
			if maxSize == 0 {
				maxSize = 1024
			}

			handler := NewIngestHandler(mockUseCase, logger, maxSize, m)
			req := httptest.NewRequest(http.MethodPost, "/logs", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", status, tt.expectedStatus)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("unexpected content type %q", ct)
			}

			var got IngestResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
				t.Fatalf("response is not JSON: %v (%q)", err, rr.Body.String())
			}
			if got != tt.expectedBody {
				t.Errorf("handler returned unexpected body: got %+v want %+v", got, tt.expectedBody)
			}
			if strings.Contains(rr.Body.String(), "connection refused") || strings.Contains(rr.Body.String(), "duplicate key") {
				t.Error("internal error detail leaked to caller")
			}
			if v := testutil.ToFloat64(m.IngestTotal.WithLabelValues(tt.metricStatus)); v != 1 {
				t.Errorf("expected %s counter to be 1, got %v", tt.metricStatus, v)
			}
		})
	}
}

func TestIngestHandler_PassesRawBody(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen []byte
	mockUseCase := &MockIngestUseCase{
		IngestFunc: func(ctx context.Context, payload []byte) (usecase.IngestResult, error) {
			seen = payload
			return usecase.IngestResult{ID: "x", OccurredAt: "y"}, nil
		},
	}
	handler := NewIngestHandler(mockUseCase, logger, 1024, metrics.NewServiceMetrics(prometheus.NewRegistry()))

	body := `{"severity":"warning","message":"raw","extra":[1,2]}`
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader(body)))

	if string(seen) != body {
		t.Errorf("use case received %q, want %q", seen, body)
	}
}
