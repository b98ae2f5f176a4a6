package gateway

import (
	"context"
	"errors"
	"sort"
	"time"

	"srtrader/internal/execution"
	"srtrader/internal/model"
	"srtrader/internal/pipeline"
)

var (
	// ErrReadOnly is returned by backends that cannot change engine state.
	ErrReadOnly = errors.New("backend is read-only")

	// ErrNoSnapshot is returned when a series has not published yet.
	ErrNoSnapshot = errors.New("no snapshot published yet")
)

// SnapshotSource returns the last snapshot published for a series, or nil.
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context, id model.SeriesID) (*pipeline.Snapshot, error)
}

// TradeSource reads journaled fills, newest first.
type TradeSource interface {
	GetTrades(limit int) ([]execution.TradeRecord, error)
}

// RemoteBackend serves the REST endpoints from what an engine in another
// process has published. Positions come from the latest snapshots, so they
// lag the engine by at most one bar.
type RemoteBackend struct {
	series  []model.Series
	byID    map[model.SeriesID]bool
	latest  SnapshotSource
	trades  TradeSource // may be nil
	timeout time.Duration
}

// NewRemoteBackend creates a read-only backend over the given sources.
func NewRemoteBackend(series []model.Series, latest SnapshotSource, trades TradeSource) *RemoteBackend {
	b := &RemoteBackend{
		series:  series,
		byID:    make(map[model.SeriesID]bool, len(series)),
		latest:  latest,
		trades:  trades,
		timeout: 2 * time.Second,
	}
	for _, s := range series {
		b.byID[s.ID] = true
	}
	return b
}

func (b *RemoteBackend) Series() []model.Series {
	out := make([]model.Series, len(b.series))
	copy(out, b.series)
	return out
}

func (b *RemoteBackend) Current(ctx context.Context, id model.SeriesID) (*pipeline.Snapshot, error) {
	if !b.byID[id] {
		return nil, model.ErrUnknownSeries
	}
	snap, err := b.latest.LatestSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

func (b *RemoteBackend) Reset(model.SeriesID) error {
	return ErrReadOnly
}

// Positions collects the position carried by the latest snapshot of every
// live series. Series whose lookup fails are skipped.
func (b *RemoteBackend) Positions() []execution.Position {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	var out []execution.Position
	for _, s := range b.series {
		if !s.Live {
			continue
		}
		snap, err := b.latest.LatestSnapshot(ctx, s.ID)
		if err != nil || snap == nil || snap.Position == nil {
			continue
		}
		out = append(out, *snap.Position)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Series < out[j].Series })
	return out
}

func (b *RemoteBackend) Trades(limit int) ([]execution.TradeRecord, error) {
	if b.trades == nil {
		return []execution.TradeRecord{}, nil
	}
	return b.trades.GetTrades(limit)
}
