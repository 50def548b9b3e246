package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/V4T54L/logstore/internal/domain"
)

// IngestResult holds the server-assigned identity of a stored record.
type IngestResult struct {
	ID         string `json:"id"`
	OccurredAt string `json:"occurredAt"`
}

// IngestOption customises an IngestRecordUseCase.
type IngestOption func(*IngestRecordUseCase)

// WithClock overrides the time source used for occurredAt.
func WithClock(now func() time.Time) IngestOption {
	return func(uc *IngestRecordUseCase) { uc.now = now }
}

// WithIDGenerator overrides the record id generator.
func WithIDGenerator(newID func() string) IngestOption {
	return func(uc *IngestRecordUseCase) { uc.newID = newID }
}

// IngestRecordUseCase handles the business logic for ingesting a log record.
type IngestRecordUseCase struct {
	store            domain.RecordStore
	logger           *slog.Logger
	timeout          time.Duration
	maxMessageLength int
	now              func() time.Time
	newID            func() string
}

// NewIngestRecordUseCase creates a new IngestRecordUseCase.
func NewIngestRecordUseCase(store domain.RecordStore, logger *slog.Logger, timeout time.Duration, maxMessageLength int, opts ...IngestOption) *IngestRecordUseCase {
	uc := &IngestRecordUseCase{
		store:            store,
		logger:           logger.With("component", "ingest_usecase"),
		timeout:          timeout,
		maxMessageLength: maxMessageLength,
		now:              time.Now,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Ingest validates payload, assigns id and occurredAt, and stores the record.
//
// Every call mints a new id, so a caller retrying after an ambiguous failure
// may create a duplicate record. The write is detached from caller
// cancellation and bounded only by the use case timeout: a record stored
// after the caller gave up stays stored.
func (uc *IngestRecordUseCase) Ingest(ctx context.Context, payload []byte) (IngestResult, error) {
	ctx, span := otel.Tracer("ingest-usecase").Start(ctx, "Ingest")
	defer span.End()
	span.SetAttributes(attribute.Int("ingest.payload_bytes", len(payload)))

	req, err := ParseIngestRequest(payload, uc.maxMessageLength)
	if err != nil {
		failSpan(span, err, "invalid_payload")
		return IngestResult{}, err
	}

	record := domain.Record{
		ID:         uc.newID(),
		OccurredAt: domain.FormatTimestamp(uc.now()),
		Severity:   req.Severity,
		Message:    req.Message,
		Group:      domain.GroupLog,
	}
	span.SetAttributes(
		attribute.String("record.id", record.ID),
		attribute.String("record.severity", string(record.Severity)),
	)

	putCtx, cancel := storageContext(context.WithoutCancel(ctx), uc.timeout)
	defer cancel()

	if err := uc.store.Put(putCtx, record); err != nil {
		if errors.Is(err, domain.ErrStorageRejected) {
			uc.logger.Error("storage rejected a validated record, invariant violated", "error", err, "record_id", record.ID)
		} else {
			uc.logger.Error("failed to store log record", "error", err, "record_id", record.ID)
		}
		failSpan(span, err, "failed_to_store_record")
		return IngestResult{}, err
	}

	uc.logger.Debug("stored log record", "record_id", record.ID, "severity", record.Severity)
	return IngestResult{ID: record.ID, OccurredAt: record.OccurredAt}, nil
}

func failSpan(span trace.Span, err error, description string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
}

func storageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
