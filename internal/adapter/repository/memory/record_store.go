// Package memory implements an in-process storage engine. A map serves as the
// primary store keyed by record id and a skiplist serves as the ordered
// secondary index. An optional WAL makes it durable across restarts.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/INLOpen/skiplist"

	"github.com/V4T54L/logstore/internal/domain"
)

// indexKey orders the secondary index of one group.
type indexKey struct {
	OccurredAt string
	ID         string
}

// compareNewestFirst sorts by occurredAt descending, then id descending, so a
// forward walk of the index yields the most recent records first.
func compareNewestFirst(a, b indexKey) int {
	switch {
	case a.OccurredAt > b.OccurredAt:
		return -1
	case a.OccurredAt < b.OccurredAt:
		return 1
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

type groupIndex = skiplist.SkipList[indexKey, string]

// RecordStore is a domain.RecordStore held in memory.
type RecordStore struct {
	wal    domain.WALRepository
	logger *slog.Logger

	mu      sync.RWMutex
	primary map[string]domain.Record
	pending map[string]struct{}
	indexes map[string]*groupIndex
}

// NewRecordStore creates a store. When wal is non-nil, its contents are
// replayed into the store and every later Put is appended to it before the
// record becomes visible.
func NewRecordStore(ctx context.Context, wal domain.WALRepository, logger *slog.Logger) (*RecordStore, error) {
	s := &RecordStore{
		wal:     wal,
		logger:  logger.With("component", "memory_record_store"),
		primary: make(map[string]domain.Record),
		pending: make(map[string]struct{}),
		indexes: make(map[string]*groupIndex),
	}

	if wal == nil {
		s.logger.Warn("no WAL configured, records will not survive a restart")
		return s, nil
	}

	err := wal.Replay(ctx, func(record domain.Record) error {
		if _, exists := s.primary[record.ID]; exists {
			s.logger.Warn("duplicate record in WAL, skipping", "record_id", record.ID)
			return nil
		}
		s.insertLocked(record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild store from WAL: %w", err)
	}
	s.logger.Info("rebuilt store from WAL", "records", len(s.primary))
	return s, nil
}

// Put appends record to the WAL, then stores it in the primary map and the
// group index under one lock, so readers never see one without the other.
// The store lock is not held across the WAL append; the id is reserved
// instead, so a concurrent Put of the same id is still refused.
func (s *RecordStore) Put(ctx context.Context, record domain.Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageRejected, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	_, exists := s.primary[record.ID]
	_, reserved := s.pending[record.ID]
	if exists || reserved {
		s.mu.Unlock()
		return fmt.Errorf("%w: duplicate id %s", domain.ErrStorageRejected, record.ID)
	}
	s.pending[record.ID] = struct{}{}
	s.mu.Unlock()

	var walErr error
	if s.wal != nil {
		walErr = s.wal.Write(ctx, record)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, record.ID)
	if walErr != nil {
		return fmt.Errorf("%w: WAL append failed: %v", domain.ErrStorageUnavailable, walErr)
	}
	s.insertLocked(record)
	return nil
}

func (s *RecordStore) insertLocked(record domain.Record) {
	s.primary[record.ID] = record
	idx, ok := s.indexes[record.Group]
	if !ok {
		idx = skiplist.NewWithComparator[indexKey, string](compareNewestFirst)
		s.indexes[record.Group] = idx
	}
	idx.Insert(indexKey{OccurredAt: record.OccurredAt, ID: record.ID}, record.ID)
}

// QueryRecent walks the group index from its newest end and stops after
// limit entries, so the cost does not depend on the total record count.
func (s *RecordStore) QueryRecent(ctx context.Context, group string, limit int) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if limit <= 0 {
		return []domain.Record{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[group]
	if !ok {
		return []domain.Record{}, nil
	}

	records := make([]domain.Record, 0, min(limit, idx.Len()))
	idx.Range(func(_ indexKey, id string) bool {
		records = append(records, s.primary[id])
		return len(records) < limit
	})
	return records, nil
}

// Get looks a record up by primary key.
func (s *RecordStore) Get(id string) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.primary[id]
	return r, ok
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.primary)
}
