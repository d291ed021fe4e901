package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"agent-trader/internal/errors"
	"agent-trader/internal/models"
)

// MemoryStore is an in-process DataStore used by tests and dry runs. It
// honors the same write-if-not-exists semantics as the SQLite store.
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]models.TradeOrder // idempotency key -> order
	orderSeq []string
	cycles   map[string]models.CycleResult
	history  map[string][]models.MarketSnapshot
	news     map[string][]models.NewsItem
	meta     map[string]models.SymbolMeta
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:  make(map[string]models.TradeOrder),
		cycles:  make(map[string]models.CycleResult),
		history: make(map[string][]models.MarketSnapshot),
		news:    make(map[string][]models.NewsItem),
		meta:    make(map[string]models.SymbolMeta),
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// PutOrderIfAbsent persists the order unless its key already exists.
func (s *MemoryStore) PutOrderIfAbsent(ctx context.Context, order *models.TradeOrder) (*models.TradeOrder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.orders[order.IdempotencyKey]; ok {
		out := existing
		return &out, false, nil
	}

	persisted := *order
	persisted.Status = models.OrderPersisted
	s.orders[order.IdempotencyKey] = persisted
	s.orderSeq = append(s.orderSeq, order.IdempotencyKey)
	out := persisted
	return &out, true, nil
}

// GetOrderByKey returns the order for a key, or nil.
func (s *MemoryStore) GetOrderByKey(ctx context.Context, key string) (*models.TradeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[key]; ok {
		out := o
		return &out, nil
	}
	return nil, nil
}

// ListOrders returns persisted orders, newest first.
func (s *MemoryStore) ListOrders(ctx context.Context, limit int) ([]models.TradeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.orderSeq) {
		limit = len(s.orderSeq)
	}
	out := make([]models.TradeOrder, 0, limit)
	for i := len(s.orderSeq) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.orders[s.orderSeq[i]])
	}
	return out, nil
}

// SaveCycle records a terminal cycle result.
func (s *MemoryStore) SaveCycle(ctx context.Context, result *models.CycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles[result.EpochID] = *result
	return nil
}

// ListCycles returns cycle results for a symbol, newest first.
func (s *MemoryStore) ListCycles(ctx context.Context, symbol string, limit int) ([]models.CycleResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CycleResult
	for _, r := range s.cycles {
		if r.Symbol == symbol {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveSnapshots appends snapshots in timestamp order.
func (s *MemoryStore) SaveSnapshots(ctx context.Context, snapshots []models.MarketSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		s.history[snap.Symbol] = append(s.history[snap.Symbol], snap)
	}
	for symbol := range s.history {
		h := s.history[symbol]
		sort.Slice(h, func(i, j int) bool { return h[i].Timestamp.Before(h[j].Timestamp) })
	}
	return nil
}

// GetHistory returns up to bars trailing snapshots in ascending order.
func (s *MemoryStore) GetHistory(ctx context.Context, symbol string, bars int) ([]models.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[symbol]
	if len(h) > bars {
		h = h[len(h)-bars:]
	}
	out := make([]models.MarketSnapshot, len(h))
	copy(out, h)
	return out, nil
}

// SaveNews appends news documents for a symbol.
func (s *MemoryStore) SaveNews(ctx context.Context, symbol string, items []models.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.news[symbol] = append(s.news[symbol], items...)
	return nil
}

// GetNews returns documents published since the given time, newest first.
func (s *MemoryStore) GetNews(ctx context.Context, symbol string, since time.Time) ([]models.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.NewsItem
	for _, item := range s.news[symbol] {
		if !item.PublishedAt.Before(since) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, nil
}

// SaveMeta upserts symbol metadata.
func (s *MemoryStore) SaveMeta(ctx context.Context, meta models.SymbolMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[meta.Symbol] = meta
	return nil
}

// GetMeta returns metadata for a symbol.
func (s *MemoryStore) GetMeta(ctx context.Context, symbol string) (models.SymbolMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.meta[symbol]; ok {
		return m, nil
	}
	return models.SymbolMeta{}, errors.ErrSymbolNotFound
}
