package store

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	records map[string]*core.Record
	mu      sync.RWMutex
	logger  *zap.Logger
	*changeFeed
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]*core.Record),
		logger:     logger,
		changeFeed: newChangeFeed(),
	}
}

// GetAll returns every record ordered by key
func (s *MemoryStore) GetAll(ctx context.Context) ([]*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectKey < out[j].SubjectKey })
	return out, nil
}

// Get retrieves the record stored under key
func (s *MemoryStore) Get(ctx context.Context, key string) (*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(r), nil
}

// Set stores a record, replacing any previous record with the same key
func (s *MemoryStore) Set(ctx context.Context, record *core.Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	s.mu.Lock()
	s.records[record.SubjectKey] = cloneRecord(record)
	s.mu.Unlock()

	s.publish([]string{record.SubjectKey})
	return nil
}

// Remove deletes the records stored under keys
func (s *MemoryStore) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	removed := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := s.records[k]; ok {
			delete(s.records, k)
			removed = append(removed, k)
		}
	}
	s.mu.Unlock()

	s.publish(removed)
	return nil
}

// Clear deletes every record
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	removed := make([]string, 0, len(s.records))
	for k := range s.records {
		removed = append(removed, k)
	}
	s.records = make(map[string]*core.Record)
	s.mu.Unlock()

	s.logger.Debug("Cleared memory store", zap.Int("removed_count", len(removed)))
	s.publish(removed)
	return nil
}
