package quota

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/costargen/costargen/internal/json"
)

// FileStore persists quota records in a single JSON file, the demo-mode
// analog of a real database. Writes go through a temp file and rename so
// a crash mid-write cannot corrupt the ledger.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]int
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("quota: file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("quota: create data directory: %w", err)
	}

	s := &FileStore{path: path, records: make(map[string]int)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("quota: read %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.records); err != nil {
			return nil, fmt.Errorf("quota: parse %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, subjectID, periodKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[fileKey(subjectID, periodKey)], nil
}

func (s *FileStore) Increment(_ context.Context, subjectID, periodKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := fileKey(subjectID, periodKey)
	s.records[k]++
	if err := s.persistLocked(); err != nil {
		s.records[k]--
		return 0, err
	}
	return s.records[k], nil
}

func (s *FileStore) Prune(_ context.Context, kind PeriodKind, cutoffKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for k := range s.records {
		_, periodKey, ok := splitFileKey(k)
		if !ok {
			continue
		}
		if kindOfKey(periodKey) == kind && periodKey < cutoffKey {
			delete(s.records, k)
			deleted++
		}
	}
	if deleted > 0 {
		if err := s.persistLocked(); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return nil
}

func fileKey(subjectID, periodKey string) string {
	return subjectID + "|" + periodKey
}

func splitFileKey(k string) (subjectID, periodKey string, ok bool) {
	idx := strings.LastIndexByte(k, '|')
	if idx < 0 {
		return "", "", false
	}
	return k[:idx], k[idx+1:], true
}
