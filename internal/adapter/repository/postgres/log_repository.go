package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/logstore/internal/domain"
)

// occurred_at uses the "C" collation so that ordering is byte-wise, which is
// what the fixed-width timestamp encoding relies on. The composite index
// turns "newest N of a group" into a bounded index scan.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS log_records (
	id          TEXT PRIMARY KEY,
	grp         TEXT NOT NULL,
	occurred_at TEXT COLLATE "C" NOT NULL,
	severity    TEXT NOT NULL CHECK (severity IN ('info', 'warning', 'error')),
	message     TEXT NOT NULL CHECK (length(btrim(message)) > 0)
);
CREATE INDEX IF NOT EXISTS log_records_grp_occurred_at_idx
	ON log_records (grp, occurred_at DESC, id DESC);
`

const insertRecordSQL = `INSERT INTO log_records (id, grp, occurred_at, severity, message) VALUES ($1, $2, $3, $4, $5)`

const queryRecentSQL = `SELECT id, grp, occurred_at, severity, message FROM log_records WHERE grp = $1 ORDER BY occurred_at DESC, id DESC LIMIT $2`

// LogRepository implements domain.RecordStore on PostgreSQL. The table
// primary key is the primary store and the composite index is the
// secondary index; one INSERT updates both atomically.
type LogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLogRepository creates a new PostgreSQL log repository.
func NewLogRepository(db *sql.DB, logger *slog.Logger) *LogRepository {
	return &LogRepository{db: db, logger: logger.With("component", "postgres_repository")}
}

// EnsureSchema creates the table and index if they do not exist.
func (r *LogRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", classify(err))
	}
	return nil
}

// Put inserts a single record.
func (r *LogRepository) Put(ctx context.Context, record domain.Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageRejected, err)
	}

	_, err := r.db.ExecContext(ctx, insertRecordSQL,
		record.ID,
		record.Group,
		record.OccurredAt,
		string(record.Severity),
		record.Message,
	)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", record.ID, classify(err))
	}
	return nil
}

// QueryRecent returns the newest records of group.
func (r *LogRepository) QueryRecent(ctx context.Context, group string, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return []domain.Record{}, nil
	}

	rows, err := r.db.QueryContext(ctx, queryRecentSQL, group, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", classify(err))
	}
	defer rows.Close()

	records := make([]domain.Record, 0, limit)
	for rows.Next() {
		var rec domain.Record
		var severity string
		if err := rows.Scan(&rec.ID, &rec.Group, &rec.OccurredAt, &severity, &rec.Message); err != nil {
			return nil, fmt.Errorf("scan record: %w", classify(err))
		}
		rec.Severity = domain.Severity(severity)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", classify(err))
	}

	return records, nil
}

// classify maps driver errors onto the storage error taxonomy. SQLSTATE
// class 22 (data exception) and 23 (integrity constraint violation) mean the
// row itself was refused; anything else is treated as transient.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23":
			return fmt.Errorf("%w: %s (%s)", domain.ErrStorageRejected, pqErr.Message, pqErr.Code)
		}
		return fmt.Errorf("%w: %s (%s)", domain.ErrStorageUnavailable, pqErr.Message, pqErr.Code)
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}
