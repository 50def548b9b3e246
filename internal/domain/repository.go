package domain

import "context"

// RecordStore is the storage engine contract consumed by the ingestor and the
// recency reader.
//
// The secondary index is modelled as the QueryRecent capability: an ordered,
// bounded, descending scan of one group. Every record currently shares
// GroupLog, which makes the index a single hot scan target. Writes fan out on
// the random primary key, so only the bounded read pattern lands on it. If
// index write contention ever matters, the evolution path is to shard the
// group by coarse time bucket (for example "LOG#2006-01-02") and merge the
// newest buckets at read time.
type RecordStore interface {
	// Put stores a new record, making it visible to primary lookup and the
	// recency index atomically. It returns an error wrapping
	// ErrStorageUnavailable or ErrStorageRejected.
	Put(ctx context.Context, record Record) error

	// QueryRecent returns up to limit records of group ordered by OccurredAt
	// descending, ties broken by ID descending. An empty store yields an
	// empty slice, not an error.
	QueryRecent(ctx context.Context, group string, limit int) ([]Record, error)
}

// WALRepository defines the interface for the write-ahead log behind the
// in-memory storage engine.
type WALRepository interface {
	// Write appends a record to the WAL. It returns once the record is on disk.
	Write(ctx context.Context, record Record) error

	// Replay reads records from the WAL in write order and hands each to handler.
	Replay(ctx context.Context, handler func(record Record) error) error

	// Close releases the active segment.
	Close() error
}
