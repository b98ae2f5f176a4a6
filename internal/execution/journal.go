package execution

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Journal persists paper fills to SQLite for analysis and audit.
// Fills are history only; positions are never restored from it.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS paper_fills (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		series      TEXT NOT NULL,
		strategy    TEXT NOT NULL,
		price       REAL NOT NULL,
		bar_low     REAL NOT NULL,
		take_profit REAL NOT NULL,
		stop_loss   REAL NOT NULL,
		placed_at   DATETIME NOT NULL,
		filled_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_paper_fills_series ON paper_fills(series);
	CREATE INDEX IF NOT EXISTS idx_paper_fills_filled_at ON paper_fills(filled_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	log.Printf("[journal] opened fill journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// RecordFill persists a fill to the journal.
func (j *Journal) RecordFill(fill Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO paper_fills (order_id, series, strategy, price, bar_low, take_profit, stop_loss, placed_at, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fill.OrderID,
		string(fill.Series),
		fill.Strategy,
		fill.Price,
		fill.BarLow,
		fill.TakeProfit,
		fill.StopLoss,
		fill.PlacedAt.UTC().Format(time.RFC3339Nano),
		fill.FilledAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal insert %s: %w", fill.OrderID, err)
	}
	return nil
}

// TradeRecord represents a row from the paper_fills table.
type TradeRecord struct {
	ID         int64   `json:"id"`
	OrderID    string  `json:"order_id"`
	Series     string  `json:"series"`
	Strategy   string  `json:"strategy"`
	Price      float64 `json:"price"`
	BarLow     float64 `json:"bar_low"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
	PlacedAt   string  `json:"placed_at"`
	FilledAt   string  `json:"filled_at"`
}

// GetTrades returns the last N fills, newest first.
func (j *Journal) GetTrades(limit int) ([]TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, series, strategy, price, bar_low, take_profit, stop_loss, placed_at, filled_at
		 FROM paper_fills ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	trades := make([]TradeRecord, 0, limit)
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Series, &t.Strategy, &t.Price, &t.BarLow,
			&t.TakeProfit, &t.StopLoss, &t.PlacedAt, &t.FilledAt); err != nil {
			log.Printf("[journal] scan error: %v", err)
			continue
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
