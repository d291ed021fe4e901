// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"agent-trader/internal/models"
)

// OrderStore persists trade orders keyed by idempotency key with
// write-if-not-exists semantics.
type OrderStore interface {
	// PutOrderIfAbsent persists the order unless one already exists for its
	// idempotency key. It returns the persisted order and whether this call
	// created it.
	PutOrderIfAbsent(ctx context.Context, order *models.TradeOrder) (*models.TradeOrder, bool, error)
	// GetOrderByKey returns the order for an idempotency key, or nil.
	GetOrderByKey(ctx context.Context, key string) (*models.TradeOrder, error)
	// ListOrders returns the most recent orders, newest first.
	ListOrders(ctx context.Context, limit int) ([]models.TradeOrder, error)
}

// CycleStore records terminal cycle results for audit.
type CycleStore interface {
	SaveCycle(ctx context.Context, result *models.CycleResult) error
	ListCycles(ctx context.Context, symbol string, limit int) ([]models.CycleResult, error)
}

// MarketStore caches market history, news documents, and symbol metadata.
type MarketStore interface {
	SaveSnapshots(ctx context.Context, snapshots []models.MarketSnapshot) error
	GetHistory(ctx context.Context, symbol string, bars int) ([]models.MarketSnapshot, error)
	SaveNews(ctx context.Context, symbol string, items []models.NewsItem) error
	GetNews(ctx context.Context, symbol string, since time.Time) ([]models.NewsItem, error)
	SaveMeta(ctx context.Context, meta models.SymbolMeta) error
	GetMeta(ctx context.Context, symbol string) (models.SymbolMeta, error)
}

// DataStore is the full persistence collaborator.
type DataStore interface {
	OrderStore
	CycleStore
	MarketStore
	Close() error
}
