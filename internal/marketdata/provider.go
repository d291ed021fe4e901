// Package marketdata abstracts the market history, news, and metadata feeds
// consumed by a decision cycle.
package marketdata

import (
	"context"
	"time"

	"agent-trader/internal/errors"
	"agent-trader/internal/models"
	"agent-trader/internal/store"
)

// Provider supplies the inputs a cycle needs for one symbol. Implementations
// must signal unavailability with a DataError rather than returning partial
// fabricated data.
type Provider interface {
	// History returns up to bars trailing snapshots in ascending timestamp
	// order. Fewer bars than requested is not an error; zero bars is.
	History(ctx context.Context, symbol string, bars int) ([]models.MarketSnapshot, error)
	// News returns documents published since the given time, newest first.
	News(ctx context.Context, symbol string, since time.Time) ([]models.NewsItem, error)
	// Meta returns the symbol's metadata and tradability flags.
	Meta(ctx context.Context, symbol string) (models.SymbolMeta, error)
}

// StoreProvider serves cycles from the persistent market cache.
type StoreProvider struct {
	store store.MarketStore
}

// NewStoreProvider creates a provider over the market store.
func NewStoreProvider(s store.MarketStore) *StoreProvider {
	return &StoreProvider{store: s}
}

func (p *StoreProvider) History(ctx context.Context, symbol string, bars int) ([]models.MarketSnapshot, error) {
	history, err := p.store.GetHistory(ctx, symbol, bars)
	if err != nil {
		return nil, errors.NewDataError("history", symbol, "store read failed", err)
	}
	if len(history) == 0 {
		return nil, errors.NewDataError("history", symbol, "no cached bars", nil)
	}
	return history, nil
}

func (p *StoreProvider) News(ctx context.Context, symbol string, since time.Time) ([]models.NewsItem, error) {
	items, err := p.store.GetNews(ctx, symbol, since)
	if err != nil {
		return nil, errors.NewDataError("news", symbol, "store read failed", err)
	}
	// Missing news is an empty slice, not an error; cycles proceed without it.
	return items, nil
}

func (p *StoreProvider) Meta(ctx context.Context, symbol string) (models.SymbolMeta, error) {
	meta, err := p.store.GetMeta(ctx, symbol)
	if err != nil {
		if errors.Is(err, errors.ErrSymbolNotFound) {
			return models.SymbolMeta{}, err
		}
		return models.SymbolMeta{}, errors.NewDataError("meta", symbol, "store read failed", err)
	}
	return meta, nil
}

// StaticProvider serves fixed data, for tests and dry runs.
type StaticProvider struct {
	Bars     map[string][]models.MarketSnapshot
	NewsDocs map[string][]models.NewsItem
	Metas    map[string]models.SymbolMeta
}

func (p *StaticProvider) History(ctx context.Context, symbol string, bars int) ([]models.MarketSnapshot, error) {
	h := p.Bars[symbol]
	if len(h) == 0 {
		return nil, errors.NewDataError("history", symbol, "no bars", nil)
	}
	if len(h) > bars {
		h = h[len(h)-bars:]
	}
	return h, nil
}

func (p *StaticProvider) News(ctx context.Context, symbol string, since time.Time) ([]models.NewsItem, error) {
	return p.NewsDocs[symbol], nil
}

func (p *StaticProvider) Meta(ctx context.Context, symbol string) (models.SymbolMeta, error) {
	m, ok := p.Metas[symbol]
	if !ok {
		return models.SymbolMeta{}, errors.ErrSymbolNotFound
	}
	return m, nil
}
