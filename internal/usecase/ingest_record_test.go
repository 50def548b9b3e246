package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/logstore/internal/domain"
	"github.com/V4T54L/logstore/internal/domain/mocks"
)

func TestIngestRecordUseCase_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{"Not JSON", `severity=info`, reasonNotAnObject},
		{"Empty body", ``, reasonNotAnObject},
		{"JSON array", `[{"severity":"info","message":"x"}]`, reasonNotAnObject},
		{"JSON string", `"info"`, reasonNotAnObject},
		{"JSON null", `null`, reasonNotAnObject},
		{"Missing severity", `{"message":"hello"}`, reasonMissingSev},
		{"Null severity", `{"severity":null,"message":"hello"}`, reasonMissingSev},
		{"Unknown severity", `{"severity":"debug","message":"hello"}`, "Invalid severity. Must be one of: info, warning, error"},
		{"Uppercase severity", `{"severity":"ERROR","message":"hello"}`, "Invalid severity. Must be one of: info, warning, error"},
		{"Numeric severity", `{"severity":3,"message":"hello"}`, "Invalid severity. Must be one of: info, warning, error"},
		{"Missing message", `{"severity":"info"}`, reasonMissingMessage},
		{"Null message", `{"severity":"info","message":null}`, reasonMissingMessage},
		{"Numeric message", `{"severity":"info","message":42}`, reasonMessageNotText},
		{"Object message", `{"severity":"info","message":{"text":"hi"}}`, reasonMessageNotText},
		{"Invalid UTF-8 message", "{\"severity\":\"info\",\"message\":\"bad \xff\xfe\"}", reasonMessageNotUTF8},
		{"NUL in message", `{"severity":"info","message":"a\u0000b"}`, reasonMessageNotUTF8},
		{"Empty message", `{"severity":"info","message":""}`, reasonMessageEmpty},
		{"Whitespace message", `{"severity":"warning","message":"  \n\t "}`, reasonMessageEmpty},
		{"Severity checked before message", `{"severity":"bogus","message":""}`, "Invalid severity. Must be one of: info, warning, error"},
		{"Message too long", `{"severity":"info","message":"` + strings.Repeat("x", 21) + `"}`, "Message exceeds maximum length of 20 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mocks.MockRecordStore{}
			uc := NewIngestRecordUseCase(store, logger, time.Second, 20)

			before := store.Count()
			_, err := uc.Ingest(context.Background(), []byte(tt.payload))

			if err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if err.Error() != tt.reason {
				t.Errorf("unexpected reason: got %q, want %q", err.Error(), tt.reason)
			}
			if store.Count() != before || store.PutCalls != 0 {
				t.Errorf("expected no storage write, got %d records and %d put calls", store.Count(), store.PutCalls)
			}
		})
	}
}

func TestIngestRecordUseCase_Ingest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)

	t.Run("Successful Ingestion", func(t *testing.T) {
		store := &mocks.MockRecordStore{}
		uc := NewIngestRecordUseCase(store, logger, time.Second, 0,
			WithClock(func() time.Time { return fixed }),
			WithIDGenerator(func() string { return "generated-id" }),
		)

		res, err := uc.Ingest(context.Background(), []byte(`{"severity":"error","message":"Payment processing failed"}`))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.ID != "generated-id" {
			t.Errorf("unexpected id %q", res.ID)
		}
		if res.OccurredAt != "2024-05-01T12:00:00.123456Z" {
			t.Errorf("unexpected occurredAt %q", res.OccurredAt)
		}
		if store.Count() != 1 {
			t.Fatalf("expected 1 stored record, got %d", store.Count())
		}
		stored := store.Records[0]
		want := domain.Record{
			ID:         "generated-id",
			OccurredAt: "2024-05-01T12:00:00.123456Z",
			Severity:   domain.SeverityError,
			Message:    "Payment processing failed",
			Group:      domain.GroupLog,
		}
		if stored != want {
			t.Errorf("stored record mismatch: got %+v, want %+v", stored, want)
		}
	})

	t.Run("Message Stored Untrimmed", func(t *testing.T) {
		store := &mocks.MockRecordStore{}
		uc := NewIngestRecordUseCase(store, logger, time.Second, 0)

		if _, err := uc.Ingest(context.Background(), []byte(`{"severity":"info","message":"  padded é "}`)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := store.Records[0].Message; got != "  padded é " {
			t.Errorf("message altered: %q", got)
		}
	})

	t.Run("Server Assigned Fields Ignore Payload", func(t *testing.T) {
		store := &mocks.MockRecordStore{}
		uc := NewIngestRecordUseCase(store, logger, time.Second, 0)

		payload := `{"id":"client-id","occurredAt":"1999-01-01T00:00:00.000000Z","group":"OTHER","severity":"info","message":"hi"}`
		res, err := uc.Ingest(context.Background(), []byte(payload))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		stored := store.Records[0]
		if stored.ID == "client-id" || res.ID == "client-id" {
			t.Error("expected server generated id")
		}
		if stored.OccurredAt == "1999-01-01T00:00:00.000000Z" {
			t.Error("expected server generated occurredAt")
		}
		if stored.Group != domain.GroupLog {
			t.Errorf("expected group %q, got %q", domain.GroupLog, stored.Group)
		}
	})

	t.Run("Retries Are Not Deduplicated", func(t *testing.T) {
		store := &mocks.MockRecordStore{}
		uc := NewIngestRecordUseCase(store, logger, time.Second, 0)
		payload := []byte(`{"severity":"warning","message":"disk almost full"}`)

		first, err := uc.Ingest(context.Background(), payload)
		if err != nil {
			t.Fatalf("first ingest failed: %v", err)
		}
		second, err := uc.Ingest(context.Background(), payload)
		if err != nil {
			t.Fatalf("second ingest failed: %v", err)
		}
		if first.ID == second.ID {
			t.Error("expected distinct ids for repeated payloads")
		}
		if store.Count() != 2 {
			t.Errorf("expected 2 records, got %d", store.Count())
		}
	})

	t.Run("Storage Unavailable", func(t *testing.T) {
		store := &mocks.MockRecordStore{
			PutErr: fmt.Errorf("%w: dial tcp 10.0.0.5:5432: connection refused", domain.ErrStorageUnavailable),
		}
		uc := NewIngestRecordUseCase(store, logger, time.Second, 0)

		_, err := uc.Ingest(context.Background(), []byte(`{"severity":"info","message":"hello"}`))
		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			t.Error("storage failure must not be reported as invalid input")
		}
	})

	t.Run("Caller Cancellation Does Not Cancel Write", func(t *testing.T) {
		var sawCancelled bool
		store := &ctxRecordingStore{onPut: func(ctx context.Context) {
			sawCancelled = ctx.Err() != nil
		}}
		uc := NewIngestRecordUseCase(store, logger, time.Second, 0)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := uc.Ingest(ctx, []byte(`{"severity":"info","message":"late"}`)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sawCancelled {
			t.Error("expected storage context to be detached from caller cancellation")
		}
	})
}

type ctxRecordingStore struct {
	onPut func(ctx context.Context)
}

func (s *ctxRecordingStore) Put(ctx context.Context, record domain.Record) error {
	s.onPut(ctx)
	return nil
}

func (s *ctxRecordingStore) QueryRecent(ctx context.Context, group string, limit int) ([]domain.Record, error) {
	return nil, nil
}
