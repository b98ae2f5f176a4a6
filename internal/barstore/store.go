// Package barstore holds the append-only, per-series bar history that every
// downstream computation reads from.
package barstore

import (
	"fmt"
	"sort"
	"sync"

	"srtrader/internal/model"
)

// Store is an in-memory, append-only bar store keyed by series.
// Safe for concurrent use; appends to different series never contend for
// longer than a map lookup.
type Store struct {
	mu     sync.RWMutex
	series map[model.SeriesID]*seriesBars
}

type seriesBars struct {
	mu      sync.RWMutex
	bars    []model.Bar
	batches int
}

// New creates an empty Store.
func New() *Store {
	return &Store{series: make(map[model.SeriesID]*seriesBars)}
}

func (s *Store) get(id model.SeriesID, create bool) *seriesBars {
	s.mu.RLock()
	sb, ok := s.series[id]
	s.mu.RUnlock()
	if ok || !create {
		return sb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sb, ok = s.series[id]; !ok {
		sb = &seriesBars{bars: make([]model.Bar, 0, 256)}
		s.series[id] = sb
	}
	return sb
}

// Append validates b and adds it to the tail of series id.
// Bars older than the current tail are rejected with model.ErrOutOfOrderBar;
// equal timestamps are accepted.
func (s *Store) Append(id model.SeriesID, b model.Bar) error {
	if b.Series == "" {
		b.Series = id
	}
	if b.Series != id {
		return fmt.Errorf("%w: bar series %s appended to %s", model.ErrMalformedBar, b.Series, id)
	}
	if err := b.Validate(); err != nil {
		return err
	}

	sb := s.get(id, true)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if n := len(sb.bars); n > 0 && b.TS.Before(sb.bars[n-1].TS) {
		return fmt.Errorf("%w: series %s: %s before tail %s", model.ErrOutOfOrderBar,
			id, b.TS.Format("2006-01-02T15:04:05.000Z07:00"),
			sb.bars[n-1].TS.Format("2006-01-02T15:04:05.000Z07:00"))
	}
	sb.bars = append(sb.bars, b)
	return nil
}

// Snapshot returns a copy of the ordered bars of series id.
// Returns nil for a series that has never received a bar.
func (s *Store) Snapshot(id model.SeriesID) []model.Bar {
	sb := s.get(id, false)
	if sb == nil {
		return nil
	}
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	cp := make([]model.Bar, len(sb.bars))
	copy(cp, sb.bars)
	return cp
}

// Latest returns the most recent bar of series id.
func (s *Store) Latest(id model.SeriesID) (model.Bar, bool) {
	sb := s.get(id, false)
	if sb == nil {
		return model.Bar{}, false
	}
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	if len(sb.bars) == 0 {
		return model.Bar{}, false
	}
	return sb.bars[len(sb.bars)-1], true
}

// Len returns the number of bars held for series id.
func (s *Store) Len(id model.SeriesID) int {
	sb := s.get(id, false)
	if sb == nil {
		return 0
	}
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return len(sb.bars)
}

// MarkBatchComplete records a batch sentinel for series id and returns how
// many batches the series has completed. The sentinel itself is not stored.
func (s *Store) MarkBatchComplete(id model.SeriesID) int {
	sb := s.get(id, true)
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.batches++
	return sb.batches
}

// Batches returns the number of completed batches for series id.
func (s *Store) Batches(id model.SeriesID) int {
	sb := s.get(id, false)
	if sb == nil {
		return 0
	}
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.batches
}

// Clear drops all bars and batch marks of series id.
func (s *Store) Clear(id model.SeriesID) {
	s.mu.Lock()
	delete(s.series, id)
	s.mu.Unlock()
}

// Series returns every known series id, sorted.
func (s *Store) Series() []model.SeriesID {
	s.mu.RLock()
	ids := make([]model.SeriesID, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
