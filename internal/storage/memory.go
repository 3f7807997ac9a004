// Package storage provides completion-record persistence implementations.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

// Compile-time interface check.
var _ domain.CompletionStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory completion store. Safe for concurrent access.
type MemoryStore struct {
	mu      sync.RWMutex
	records []domain.CompletionRecord
	log     *logger.Logger
}

// NewMemoryStore creates an empty in-memory completion store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{log: log}
}

// SaveCompletions appends the records. Records without an ID get one.
func (s *MemoryStore) SaveCompletions(ctx context.Context, records []domain.CompletionRecord) error {
	if len(records) == 0 {
		return nil
	}
	prepared := prepare(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, prepared...)
	s.log.Debug("saved %d completion records (session=%s, total=%d)", len(prepared), prepared[0].SessionID, len(s.records))
	return nil
}

// ListCompletions returns the newest records first. limit <= 0 returns all.
func (s *MemoryStore) ListCompletions(ctx context.Context, limit int) ([]domain.CompletionRecord, error) {
	s.mu.RLock()
	out := append([]domain.CompletionRecord(nil), s.records...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Step < out[j].Step
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// prepare copies records, filling in missing IDs and dates.
func prepare(records []domain.CompletionRecord) []domain.CompletionRecord {
	now := time.Now().UTC()
	out := make([]domain.CompletionRecord, len(records))
	for i, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Date.IsZero() {
			r.Date = now
		}
		out[i] = r
	}
	return out
}
