package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/logstore/internal/domain"
)

const (
	recordKeyPrefix = "logstore:record:"
	indexKeyPrefix  = "logstore:index:"

	// indexMemberSep joins occurredAt and id in an index member. It sorts
	// below every character of the id alphabet, and the timestamp prefix is
	// fixed-width, so member order is (occurredAt, id).
	indexMemberSep = "#"
)

// LogRepository implements domain.RecordStore on Redis. Each record is a hash
// keyed by id; each group has a sorted set whose members all score 0, which
// makes Redis order them lexicographically by "occurredAt#id".
type LogRepository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewLogRepository creates a new Redis-backed LogRepository.
func NewLogRepository(client *redis.Client, logger *slog.Logger) *LogRepository {
	return &LogRepository{
		client: client,
		logger: logger.With("component", "redis_repository"),
	}
}

func recordKey(id string) string {
	return recordKeyPrefix + id
}

func indexKey(group string) string {
	return indexKeyPrefix + group
}

func indexMember(record domain.Record) string {
	return record.OccurredAt + indexMemberSep + record.ID
}

// Put writes the record hash and its index member in one MULTI/EXEC. The
// record key is watched so a concurrent write of the same id aborts the
// transaction instead of overwriting.
func (r *LogRepository) Put(ctx context.Context, record domain.Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageRejected, err)
	}

	key := recordKey(record.ID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("%w: duplicate id %s", domain.ErrStorageRejected, record.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]interface{}{
				"id":         record.ID,
				"occurredAt": record.OccurredAt,
				"severity":   string(record.Severity),
				"message":    record.Message,
				"group":      record.Group,
			})
			pipe.ZAdd(ctx, indexKey(record.Group), redis.Z{Score: 0, Member: indexMember(record)})
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrStorageRejected):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: concurrent write to id %s", domain.ErrStorageRejected, record.ID)
	case isNetworkError(err):
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return fmt.Errorf("%w: %v", domain.ErrStorageRejected, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

// QueryRecent reads the newest limit members of the group index and fetches
// their hashes in one pipeline.
func (r *LogRepository) QueryRecent(ctx context.Context, group string, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return []domain.Record{}, nil
	}

	members, err := r.client.ZRevRange(ctx, indexKey(group), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to ZREVRANGE index: %v", domain.ErrStorageUnavailable, err)
	}
	if len(members) == 0 {
		return []domain.Record{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(members))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, member := range members {
			cmds[i] = pipe.HGetAll(ctx, recordKey(memberID(member)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch records: %v", domain.ErrStorageUnavailable, err)
	}

	records := make([]domain.Record, 0, len(members))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			r.logger.Warn("index member has no record hash, skipping", "member", members[i])
			continue
		}
		records = append(records, domain.Record{
			ID:         fields["id"],
			OccurredAt: fields["occurredAt"],
			Severity:   domain.Severity(fields["severity"]),
			Message:    fields["message"],
			Group:      fields["group"],
		})
	}
	return records, nil
}

func memberID(member string) string {
	if i := strings.LastIndex(member, indexMemberSep); i >= 0 {
		return member[i+1:]
	}
	return member
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
