package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"agent-trader/internal/errors"
	"agent-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Market snapshots cached from the data collaborator
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		prev_close REAL NOT NULL,
		volume INTEGER NOT NULL,
		turnover REAL NOT NULL,
		UNIQUE(symbol, timestamp)
	);

	-- News documents keyed by symbol
	CREATE TABLE IF NOT EXISTS news (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		title TEXT NOT NULL,
		source TEXT,
		content TEXT,
		published_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_news_symbol_time ON news(symbol, published_at);

	-- Symbol metadata
	CREATE TABLE IF NOT EXISTS symbols (
		symbol TEXT PRIMARY KEY,
		name TEXT,
		industry TEXT,
		halted INTEGER DEFAULT 0
	);

	-- Trade orders, at most one per idempotency key
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		idempotency_key TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		ref_price REAL NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- Terminal cycle results for audit
	CREATE TABLE IF NOT EXISTS cycles (
		epoch_id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		reason TEXT,
		state TEXT NOT NULL,
		composite REAL,
		verdict TEXT,
		order_id TEXT,
		detail TEXT,
		started_at DATETIME NOT NULL,
		elapsed_ms INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_cycles_symbol ON cycles(symbol, started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutOrderIfAbsent persists the order with write-if-not-exists semantics on
// the idempotency key. A second call with the same key returns the original
// order and created=false.
func (s *SQLiteStore) PutOrderIfAbsent(ctx context.Context, order *models.TradeOrder) (*models.TradeOrder, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO orders (id, idempotency_key, symbol, side, quantity, ref_price, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.IdempotencyKey, order.Symbol, string(order.Side),
		order.Quantity, order.RefPrice, string(models.OrderPersisted), order.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting order: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows == 0 {
		existing, err := s.GetOrderByKey(ctx, order.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	persisted := *order
	persisted.Status = models.OrderPersisted
	return &persisted, true, nil
}

// GetOrderByKey returns the order for an idempotency key, or nil when absent.
func (s *SQLiteStore) GetOrderByKey(ctx context.Context, key string) (*models.TradeOrder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, symbol, side, quantity, ref_price, status, created_at
		FROM orders WHERE idempotency_key = ?`, key)

	var o models.TradeOrder
	var side, status string
	if err := row.Scan(&o.ID, &o.IdempotencyKey, &o.Symbol, &side, &o.Quantity, &o.RefPrice, &status, &o.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying order: %w", err)
	}
	o.Side = models.OrderSide(side)
	o.Status = models.OrderStatus(status)
	return &o, nil
}

// ListOrders returns the most recent orders, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, limit int) ([]models.TradeOrder, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idempotency_key, symbol, side, quantity, ref_price, status, created_at
		FROM orders ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []models.TradeOrder
	for rows.Next() {
		var o models.TradeOrder
		var side, status string
		if err := rows.Scan(&o.ID, &o.IdempotencyKey, &o.Symbol, &side, &o.Quantity, &o.RefPrice, &status, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Side = models.OrderSide(side)
		o.Status = models.OrderStatus(status)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// SaveCycle records a terminal cycle result.
func (s *SQLiteStore) SaveCycle(ctx context.Context, result *models.CycleResult) error {
	var composite float64
	var verdict, orderID string
	if result.Score != nil {
		composite = result.Score.Value
	}
	if result.Risk != nil {
		verdict = string(result.Risk.Verdict)
	}
	if result.Order != nil {
		orderID = result.Order.ID
	}

	detail, err := json.Marshal(result.Opinions)
	if err != nil {
		detail = nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cycles (epoch_id, symbol, reason, state, composite, verdict, order_id, detail, started_at, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.EpochID, result.Symbol, result.Reason, string(result.State),
		composite, verdict, orderID, string(detail), result.StartedAt, result.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("saving cycle: %w", err)
	}
	return nil
}

// ListCycles returns recent cycle results for a symbol, newest first.
// Opinion detail is not rehydrated.
func (s *SQLiteStore) ListCycles(ctx context.Context, symbol string, limit int) ([]models.CycleResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch_id, symbol, reason, state, composite, verdict, order_id, started_at, elapsed_ms
		FROM cycles WHERE symbol = ? ORDER BY started_at DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("querying cycles: %w", err)
	}
	defer rows.Close()

	var results []models.CycleResult
	for rows.Next() {
		var r models.CycleResult
		var state, verdict, orderID string
		var composite float64
		var elapsedMs int64
		if err := rows.Scan(&r.EpochID, &r.Symbol, &r.Reason, &state, &composite, &verdict, &orderID, &r.StartedAt, &elapsedMs); err != nil {
			return nil, err
		}
		r.State = models.CycleState(state)
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		if verdict != "" {
			r.Risk = &models.RiskDecision{Verdict: models.Verdict(verdict)}
		}
		if orderID != "" {
			r.Order = &models.TradeOrder{ID: orderID}
		}
		r.Score = &models.CompositeScore{Symbol: r.Symbol, EpochID: r.EpochID, Value: composite}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SaveSnapshots upserts market snapshots.
func (s *SQLiteStore) SaveSnapshots(ctx context.Context, snapshots []models.MarketSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO snapshots (symbol, timestamp, open, high, low, close, prev_close, volume, turnover)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, snap := range snapshots {
		if _, err := stmt.ExecContext(ctx, snap.Symbol, snap.Timestamp, snap.Open, snap.High,
			snap.Low, snap.Close, snap.PrevClose, snap.Volume, snap.Turnover); err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
	}

	return tx.Commit()
}

// GetHistory returns up to bars snapshots for the symbol in ascending time
// order.
func (s *SQLiteStore) GetHistory(ctx context.Context, symbol string, bars int) ([]models.MarketSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timestamp, open, high, low, close, prev_close, volume, turnover
		FROM (
			SELECT * FROM snapshots WHERE symbol = ? ORDER BY timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC`, symbol, bars)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var history []models.MarketSnapshot
	for rows.Next() {
		var snap models.MarketSnapshot
		if err := rows.Scan(&snap.Symbol, &snap.Timestamp, &snap.Open, &snap.High,
			&snap.Low, &snap.Close, &snap.PrevClose, &snap.Volume, &snap.Turnover); err != nil {
			return nil, err
		}
		history = append(history, snap)
	}
	return history, rows.Err()
}

// SaveNews appends news documents for a symbol.
func (s *SQLiteStore) SaveNews(ctx context.Context, symbol string, items []models.NewsItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO news (symbol, title, source, content, published_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, symbol, item.Title, item.Source, item.Content, item.PublishedAt); err != nil {
			return fmt.Errorf("inserting news: %w", err)
		}
	}

	return tx.Commit()
}

// GetNews returns news documents for a symbol published since the given time,
// newest first.
func (s *SQLiteStore) GetNews(ctx context.Context, symbol string, since time.Time) ([]models.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, source, content, published_at
		FROM news WHERE symbol = ? AND published_at >= ? ORDER BY published_at DESC`, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("querying news: %w", err)
	}
	defer rows.Close()

	var items []models.NewsItem
	for rows.Next() {
		var item models.NewsItem
		if err := rows.Scan(&item.Title, &item.Source, &item.Content, &item.PublishedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveMeta upserts symbol metadata.
func (s *SQLiteStore) SaveMeta(ctx context.Context, meta models.SymbolMeta) error {
	halted := 0
	if meta.Halted {
		halted = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO symbols (symbol, name, industry, halted) VALUES (?, ?, ?, ?)`,
		meta.Symbol, meta.Name, meta.Industry, halted)
	if err != nil {
		return fmt.Errorf("saving symbol meta: %w", err)
	}
	return nil
}

// GetMeta returns metadata for a symbol.
func (s *SQLiteStore) GetMeta(ctx context.Context, symbol string) (models.SymbolMeta, error) {
	row := s.db.QueryRowContext(ctx, `SELECT symbol, name, industry, halted FROM symbols WHERE symbol = ?`, symbol)

	var meta models.SymbolMeta
	var halted int
	if err := row.Scan(&meta.Symbol, &meta.Name, &meta.Industry, &halted); err != nil {
		if err == sql.ErrNoRows {
			return models.SymbolMeta{}, errors.ErrSymbolNotFound
		}
		return models.SymbolMeta{}, fmt.Errorf("querying symbol meta: %w", err)
	}
	meta.Halted = halted == 1
	return meta, nil
}
