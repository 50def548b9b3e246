package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/V4T54L/logstore/internal/domain"
	"github.com/V4T54L/logstore/internal/domain/mocks"
)

func TestRecentRecordsUseCase_Recent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Empty Store", func(t *testing.T) {
		store := &mocks.MockRecordStore{}
		uc := NewRecentRecordsUseCase(store, logger, 0, time.Second)

		page, err := uc.Recent(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if page.Count != 0 || page.Records == nil || len(page.Records) != 0 {
			t.Errorf("expected empty page, got %+v", page)
		}
		if store.LastLimit != DefaultRecentPageSize {
			t.Errorf("expected default limit %d, got %d", DefaultRecentPageSize, store.LastLimit)
		}
		if store.LastGroup != domain.GroupLog {
			t.Errorf("expected group %q, got %q", domain.GroupLog, store.LastGroup)
		}
		if store.QueryCalls != 1 {
			t.Errorf("expected exactly one storage query, got %d", store.QueryCalls)
		}
	})

	t.Run("Bounded Page Of Newest Records", func(t *testing.T) {
		store := &mocks.MockRecordStore{}
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		ingest := NewIngestRecordUseCase(store, logger, time.Second, 0)

		for i := 0; i < 150; i++ {
			ts := base.Add(time.Duration(i) * time.Millisecond)
			ingest.now = func() time.Time { return ts }
			payload := fmt.Sprintf(`{"severity":"info","message":"record %d"}`, i)
			if _, err := ingest.Ingest(context.Background(), []byte(payload)); err != nil {
				t.Fatalf("ingest %d failed: %v", i, err)
			}
		}

		uc := NewRecentRecordsUseCase(store, logger, 100, time.Second)
		page, err := uc.Recent(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if page.Count != 100 || len(page.Records) != 100 {
			t.Fatalf("expected 100 records, got count=%d len=%d", page.Count, len(page.Records))
		}
		for i, r := range page.Records {
			want := fmt.Sprintf("record %d", 149-i)
			if r.Message != want {
				t.Fatalf("position %d: got %q, want %q", i, r.Message, want)
			}
		}
	})

	t.Run("Storage Failure Is Not An Empty Page", func(t *testing.T) {
		store := &mocks.MockRecordStore{QueryErr: fmt.Errorf("%w: i/o timeout", domain.ErrStorageUnavailable)}
		uc := NewRecentRecordsUseCase(store, logger, 10, time.Second)

		_, err := uc.Recent(context.Background())
		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
		if store.QueryCalls != 1 {
			t.Errorf("expected a single query with no retry, got %d", store.QueryCalls)
		}
	})
}
