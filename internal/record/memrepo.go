package record

import (
	"context"
	"sync"
)

// MemoryRepository keeps records in memory. Default when no DATABASE_URL
// is configured; also used by tests.
type MemoryRepository struct {
	mu   sync.Mutex
	recs map[string]*GameRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{recs: make(map[string]*GameRecord)}
}

func (r *MemoryRepository) SaveResult(_ context.Context, rec *GameRecord) error {
	if rec == nil {
		return nil
	}
	r.mu.Lock()
	cp := *rec
	r.recs[rec.GameID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Get(gameID string) (*GameRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[gameID]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

func (r *MemoryRepository) Close() error { return nil }
