package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MarcinPiech/DHLAI/core/events"
	"github.com/MarcinPiech/DHLAI/core/logger"
)

// RotatingStore writes records to a JSONL file rotated by lumberjack.
type RotatingStore struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
	path   string
}

// NewRotatingStore creates a store with rotation options in megabytes and days.
func NewRotatingStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   false,
	}
	return &RotatingStore{writer: lj, path: path}, nil
}

// Append writes the record and triggers rotation if needed.
func (s *RotatingStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.writer).Encode(rec)
}

// Query reads the active file and its rotated backups, oldest record first.
func (s *RotatingStore) Query(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext := filepath.Ext(s.path)
	base := s.path[:len(s.path)-len(ext)]
	files, err := filepath.Glob(base + "*" + ext)
	if err != nil {
		return nil, err
	}
	var res []Record
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := readFile(f, q)
		if err != nil {
			continue
		}
		res = append(res, recs...)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return res, nil
}

func readFile(path string, q Query) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	var res []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		if q.match(r) {
			res = append(res, r)
		}
	}
	return res, scanner.Err()
}

// Close closes the underlying writer.
func (s *RotatingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}

// Follow appends every DeliveryAttempted received on sub until ctx is done
// or sub is closed. Write failures are logged and skipped.
func Follow(ctx context.Context, sub <-chan events.Event, store Store, log logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			e, ok := ev.(events.DeliveryAttempted)
			if !ok {
				continue
			}
			if err := store.Append(ctx, FromEvent(e)); err != nil {
				log.Warnf("journal: append draft %d: %v", e.DraftID, err)
			}
		}
	}
}
