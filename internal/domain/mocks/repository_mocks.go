package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/V4T54L/logstore/internal/domain"
)

// MockRecordStore is a mock implementation of domain.RecordStore for testing.
// It keeps records in insertion order and sorts on read.
type MockRecordStore struct {
	mu         sync.Mutex
	Records    []domain.Record
	PutCalls   int
	QueryCalls int
	LastGroup  string
	LastLimit  int
	PutErr     error
	QueryErr   error
}

func (m *MockRecordStore) Put(ctx context.Context, record domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.PutErr != nil {
		return m.PutErr
	}
	m.Records = append(m.Records, record)
	return nil
}

func (m *MockRecordStore) QueryRecent(ctx context.Context, group string, limit int) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCalls++
	m.LastGroup = group
	m.LastLimit = limit
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	var matched []domain.Record
	for _, r := range m.Records {
		if r.Group == group {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].OccurredAt != matched[j].OccurredAt {
			return matched[i].OccurredAt > matched[j].OccurredAt
		}
		return matched[i].ID > matched[j].ID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Count returns the number of stored records.
func (m *MockRecordStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}
