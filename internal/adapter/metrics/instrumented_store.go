package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/V4T54L/logstore/internal/domain"
)

// InstrumentedStore decorates a domain.RecordStore with latency and error metrics.
type InstrumentedStore struct {
	next    domain.RecordStore
	metrics *ServiceMetrics
}

// NewInstrumentedStore wraps next.
func NewInstrumentedStore(next domain.RecordStore, m *ServiceMetrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, metrics: m}
}

func (s *InstrumentedStore) Put(ctx context.Context, record domain.Record) error {
	start := time.Now()
	err := s.next.Put(ctx, record)
	s.observe("put", start, err)
	return err
}

func (s *InstrumentedStore) QueryRecent(ctx context.Context, group string, limit int) ([]domain.Record, error) {
	start := time.Now()
	records, err := s.next.QueryRecent(ctx, group, limit)
	s.observe("query_recent", start, err)
	return records, err
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.metrics.StorageDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.StorageErrors.WithLabelValues(op, errorClass(err)).Inc()
	}
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrStorageRejected):
		return "rejected"
	default:
		return "other"
	}
}
