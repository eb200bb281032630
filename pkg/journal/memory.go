package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/pario-ai/oracle/pkg/models"
)

// MemoryStore is a Store that keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.JournalRecord
	newest  map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{newest: make(map[string]int)}
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, sort string, outcome models.WorkOutcome) (models.JournalRecord, error) {
	item, err := json.Marshal(outcome)
	if err != nil {
		return models.JournalRecord{}, err
	}
	sum := sha256.Sum256(item)

	m.mu.Lock()
	defer m.mu.Unlock()
	rec := models.JournalRecord{
		EID:     int64(len(m.records) + 1),
		Time:    time.Now().UTC(),
		Sort:    sort,
		Outcome: outcome,
		Hash:    hex.EncodeToString(sum[:]),
	}
	m.records = append(m.records, rec)
	m.newest[sort+"\x00"+outcome.Request.CacheKey()] = len(m.records) - 1
	return rec, nil
}

// Lookup implements Store.
func (m *MemoryStore) Lookup(_ context.Context, sort string, req models.WorkRequest) (*models.WorkOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.newest[sort+"\x00"+req.CacheKey()]
	if !ok {
		return nil, ErrNotFound
	}
	out := m.records[i].Outcome
	return &out, nil
}

// Records returns a copy of every record in append order.
func (m *MemoryStore) Records() []models.JournalRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.JournalRecord(nil), m.records...)
}
