package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Repository used when no database is
// configured and as the fake in tests. Values are copied in and out so a
// reader never observes a partially applied write.
type MemoryStore struct {
	mu      sync.RWMutex
	watches map[string]Watch
	prices  map[string]PriceSnapshot
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		watches: make(map[string]Watch),
		prices:  make(map[string]PriceSnapshot),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListWatches returns every watch ordered by ticker.
func (m *MemoryStore) ListWatches(ctx context.Context) ([]Watch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Watch, 0, len(m.watches))
	for _, w := range m.watches {
		out = append(out, w.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

// GetWatch returns a copy of one watch, or nil.
func (m *MemoryStore) GetWatch(ctx context.Context, ticker string) (*Watch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.watches[ticker]
	if !ok {
		return nil, nil
	}
	clone := w.Clone()
	return &clone, nil
}

// UpsertWatch inserts or replaces a watch.
func (m *MemoryStore) UpsertWatch(ctx context.Context, watch Watch) (Watch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := watch.Clone()
	if saved.Levels == nil {
		saved.Levels = []float64{}
	}
	saved.UpdatedAt = m.now()
	m.watches[saved.Ticker] = saved
	return saved.Clone(), nil
}

// DeleteWatch removes a watch and reports whether it existed.
func (m *MemoryStore) DeleteWatch(ctx context.Context, ticker string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watches[ticker]; !ok {
		return false, nil
	}
	delete(m.watches, ticker)
	return true, nil
}

// UpdateAlertHash sets or clears the alert digest of an existing watch.
func (m *MemoryStore) UpdateAlertHash(ctx context.Context, ticker string, hash *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.watches[ticker]
	if !ok {
		return nil
	}
	w.LastAlertHash = nil
	if hash != nil {
		value := *hash
		w.LastAlertHash = &value
	}
	w.UpdatedAt = m.now()
	m.watches[ticker] = w
	return nil
}

// GetPrice returns a copy of the cached quote, or nil.
func (m *MemoryStore) GetPrice(ctx context.Context, ticker string) (*PriceSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.prices[ticker]
	if !ok {
		return nil, nil
	}
	clone := p.Clone()
	return &clone, nil
}

// SetPrice replaces the cached quote for a ticker.
func (m *MemoryStore) SetPrice(ctx context.Context, snapshot PriceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prices[snapshot.Ticker] = snapshot.Clone()
	return nil
}

var _ Repository = (*MemoryStore)(nil)
