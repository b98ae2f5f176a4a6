package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the processing pipeline from concrete storage
// implementations (Redis, SQLite).

// BarRecorder persists accepted bars for later replay.
type BarRecorder interface {
	// Run reads bars from barCh and writes them.
	// Blocks until ctx is cancelled or barCh is closed.
	Run(ctx context.Context, barCh <-chan Bar)

	// Close releases underlying resources.
	Close() error
}

// BarReader reads recorded bars for replay.
type BarReader interface {
	// ReadBars reads bars for one series after the given time, oldest first.
	ReadBars(series SeriesID, after time.Time) ([]Bar, error)

	// ListSeries returns every series with at least one recorded bar.
	ListSeries() ([]SeriesID, error)

	// Close releases underlying resources.
	Close() error
}
