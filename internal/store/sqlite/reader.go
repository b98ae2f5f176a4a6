package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"srtrader/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to recorded bars for replay.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars reads bars of series strictly after the given time, ordered by
// timestamp ascending for correct replay order. A zero after reads all.
func (r *Reader) ReadBars(series model.SeriesID, after time.Time) ([]model.Bar, error) {
	var afterMs int64
	if !after.IsZero() {
		afterMs = after.UnixMilli()
	}
	rows, err := r.db.Query(`
		SELECT ts, open, high, low, close
		FROM bars
		WHERE series = ? AND ts > ?
		ORDER BY ts ASC
	`, string(series), afterMs)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		b := model.Bar{Series: series}
		var tsMs int64
		if err := rows.Scan(&tsMs, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.UnixMilli(tsMs).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSeries returns every series with at least one recorded bar.
func (r *Reader) ListSeries() ([]model.SeriesID, error) {
	rows, err := r.db.Query(`SELECT DISTINCT series FROM bars ORDER BY series`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list series: %w", err)
	}
	defer rows.Close()

	var ids []model.SeriesID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite scan series: %w", err)
		}
		ids = append(ids, model.SeriesID(id))
	}
	return ids, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}

var (
	_ model.BarRecorder = (*Writer)(nil)
	_ model.BarReader   = (*Reader)(nil)
)
