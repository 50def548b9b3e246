package usecase

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/V4T54L/logstore/internal/domain"
)

// DefaultRecentPageSize is the number of records returned by a recency query.
const DefaultRecentPageSize = 100

// RecentRecordsUseCase serves the most recent page of records.
type RecentRecordsUseCase struct {
	store    domain.RecordStore
	logger   *slog.Logger
	pageSize int
	timeout  time.Duration
}

// NewRecentRecordsUseCase creates a new RecentRecordsUseCase. A non-positive
// pageSize falls back to DefaultRecentPageSize.
func NewRecentRecordsUseCase(store domain.RecordStore, logger *slog.Logger, pageSize int, timeout time.Duration) *RecentRecordsUseCase {
	if pageSize <= 0 {
		pageSize = DefaultRecentPageSize
	}
	return &RecentRecordsUseCase{
		store:    store,
		logger:   logger.With("component", "recent_usecase"),
		pageSize: pageSize,
		timeout:  timeout,
	}
}

// Recent returns up to pageSize records, newest first. Storage failures are
// returned as errors, never as an empty page.
func (uc *RecentRecordsUseCase) Recent(ctx context.Context) (domain.RecentPage, error) {
	ctx, span := otel.Tracer("recent-usecase").Start(ctx, "Recent")
	defer span.End()
	span.SetAttributes(attribute.Int("recent.limit", uc.pageSize))

	queryCtx, cancel := storageContext(ctx, uc.timeout)
	defer cancel()

	records, err := uc.store.QueryRecent(queryCtx, domain.GroupLog, uc.pageSize)
	if err != nil {
		uc.logger.Error("failed to query recent records", "error", err, "limit", uc.pageSize)
		failSpan(span, err, "failed_to_query_records")
		return domain.RecentPage{}, err
	}
	span.SetAttributes(attribute.Int("recent.count", len(records)))
	return domain.NewRecentPage(records), nil
}
