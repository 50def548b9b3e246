package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/logstore/internal/domain"
)

const (
	segmentPrefix = "segment-"
	segmentSuffix = ".log"
	filePerm      = 0644

	// Replay tolerates lines up to this size; longer lines are corrupt by definition
	// since the request body cap is far smaller.
	maxLineSize = 16 * 1024 * 1024
)

// ErrWALFull is returned when a write would exceed the configured disk budget.
var ErrWALFull = errors.New("WAL max total size exceeded")

// WALRepository implements a segmented, JSON-lines write-ahead log of records.
type WALRepository struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu             sync.Mutex
	currentSegment *os.File
	currentSize    int64
	totalSize      int64
	seq            int64
}

// NewWALRepository opens (or creates) the WAL in dir.
func NewWALRepository(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*WALRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory %s: %w", dir, err)
	}

	w := &WALRepository{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "wal_repository"),
	}

	total, err := w.calculateTotalSize()
	if err != nil {
		return nil, fmt.Errorf("failed to size WAL directory: %w", err)
	}
	w.totalSize = total

	if err := w.openLatestSegment(); err != nil {
		return nil, err
	}

	return w, nil
}

// Write appends a record to the current segment and fsyncs it.
func (w *WALRepository) Write(ctx context.Context, record domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record for WAL: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentSegment == nil {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	if w.maxTotalSize > 0 && w.totalSize+int64(len(data)) > w.maxTotalSize {
		return fmt.Errorf("%w (%d + %d > %d)", ErrWALFull, w.totalSize, len(data), w.maxTotalSize)
	}

	n, err := w.currentSegment.Write(data)
	w.currentSize += int64(n)
	w.totalSize += int64(n)
	if err == nil {
		err = w.currentSegment.Sync()
	}
	if err != nil {
		// The segment may now end in a partial line. Later records go to a
		// fresh segment so they are never glued onto it.
		w.abandonSegment()
		return fmt.Errorf("failed to append to WAL segment: %w", err)
	}

	if w.currentSize >= w.maxSegmentSize {
		if err := w.rotate(); err != nil {
			w.logger.Error("Failed to rotate WAL segment", "error", err)
		}
	}

	return nil
}

// Replay reads all segments in order and calls handler for each record.
// Lines that fail to decode are skipped with a warning; a torn final line
// after a crash is expected.
func (w *WALRepository) Replay(ctx context.Context, handler func(record domain.Record) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	segments, err := w.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		w.logger.Info("WAL is empty, nothing to replay")
		return nil
	}
	w.logger.Info("Starting WAL replay", "segment_count", len(segments))

	replayed := 0
	for _, segmentPath := range segments {
		n, err := w.replaySegment(ctx, segmentPath, handler)
		replayed += n
		if err != nil {
			return err
		}
	}

	w.logger.Info("WAL replay completed", "records", replayed)
	return nil
}

func (w *WALRepository) replaySegment(ctx context.Context, segmentPath string, handler func(record domain.Record) error) (int, error) {
	file, err := os.Open(segmentPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open segment %s for replay: %w", segmentPath, err)
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record domain.Record
		if err := json.Unmarshal(line, &record); err != nil {
			w.logger.Warn("Failed to unmarshal record from WAL, skipping", "error", err, "segment", filepath.Base(segmentPath))
			continue
		}
		if err := handler(record); err != nil {
			w.logger.Error("WAL replay handler failed, stopping replay", "error", err, "record_id", record.ID)
			return count, fmt.Errorf("replay handler failed: %w", err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("error scanning segment %s: %w", segmentPath, err)
	}
	return count, nil
}

func (w *WALRepository) rotate() error {
	if w.currentSegment != nil {
		if err := w.currentSegment.Sync(); err != nil {
			w.logger.Error("Failed to sync WAL segment before rotating", "error", err)
		}
		if err := w.currentSegment.Close(); err != nil {
			w.logger.Error("Failed to close WAL segment before rotating", "error", err)
		}
		w.currentSegment = nil
	}

	// The sequence suffix keeps names unique and ordered when two rotations
	// land in the same nanosecond tick.
	w.seq++
	segmentName := fmt.Sprintf("%s%020d-%06d%s", segmentPrefix, time.Now().UnixNano(), w.seq, segmentSuffix)
	path := filepath.Join(w.dir, segmentName)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create new WAL segment %s: %w", path, err)
	}

	w.currentSegment = f
	w.currentSize = 0
	w.logger.Debug("Rotated to new WAL segment", "path", path)
	return nil
}

func (w *WALRepository) abandonSegment() {
	if w.currentSegment == nil {
		return
	}
	if err := w.currentSegment.Close(); err != nil {
		w.logger.Error("Failed to close abandoned WAL segment", "error", err)
	}
	w.currentSegment = nil
	if err := w.rotate(); err != nil {
		w.logger.Error("Failed to open WAL segment after a failed append", "error", err)
	}
}

// endsCleanly reports whether the segment is empty or its last byte is a
// newline, i.e. whether appending to it cannot extend a torn record.
func endsCleanly(path string, size int64) (bool, error) {
	if size == 0 {
		return true, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return false, err
	}
	return last[0] == '\n', nil
}

func (w *WALRepository) openLatestSegment() error {
	segments, err := w.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		return w.rotate()
	}

	latestSegmentPath := segments[len(segments)-1]
	stat, err := os.Stat(latestSegmentPath)
	if err != nil {
		return fmt.Errorf("failed to stat latest segment %s: %w", latestSegmentPath, err)
	}

	clean, err := endsCleanly(latestSegmentPath, stat.Size())
	if err != nil {
		return fmt.Errorf("failed to inspect latest segment %s: %w", latestSegmentPath, err)
	}
	if !clean {
		w.logger.Warn("Latest WAL segment ends in a torn record, starting a new segment", "path", latestSegmentPath)
		return w.rotate()
	}

	f, err := os.OpenFile(latestSegmentPath, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open latest segment %s: %w", latestSegmentPath, err)
	}

	w.currentSegment = f
	w.currentSize = stat.Size()
	w.logger.Info("Opened existing WAL segment", "path", latestSegmentPath, "size", w.currentSize)

	if w.currentSize >= w.maxSegmentSize {
		return w.rotate()
	}

	return nil
}

func (w *WALRepository) getSortedSegments() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAL directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if isSegment(entry) {
			segments = append(segments, filepath.Join(w.dir, entry.Name()))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (w *WALRepository) calculateTotalSize() (int64, error) {
	var totalSize int64
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if !isSegment(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return 0, err
		}
		totalSize += info.Size()
	}
	return totalSize, nil
}

func isSegment(entry os.DirEntry) bool {
	return !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) && strings.HasSuffix(entry.Name(), segmentSuffix)
}

// Close syncs and closes the current segment.
func (w *WALRepository) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentSegment == nil {
		return nil
	}
	err := errors.Join(w.currentSegment.Sync(), w.currentSegment.Close())
	w.currentSegment = nil
	return err
}
