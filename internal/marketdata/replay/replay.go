// Package replay provides a bar replayer that reads recorded bars from a
// BarReader and emits them as feed events at configurable speed for
// backtesting.
package replay

import (
	"context"
	"log"
	"sort"
	"time"

	"srtrader/internal/model"
)

// Replayer reads recorded bars and replays them at a configurable speed
// multiplier.
type Replayer struct {
	reader model.BarReader

	// MaxGap caps the sleep between two consecutive bars.
	MaxGap time.Duration
}

// New creates a Replayer backed by a bar reader.
func New(reader model.BarReader) *Replayer {
	return &Replayer{reader: reader, MaxGap: 5 * time.Second}
}

// Run replays all bars of the given series, emitting them into outCh as
// DataPoint events followed by one BatchComplete per series.
// An empty series list replays every recorded series.
// speed controls the playback rate: 1.0 = real-time, 10.0 = 10x, 0 = as fast as possible.
// from filters bars to those strictly after it (zero = all).
func (r *Replayer) Run(ctx context.Context, series []model.SeriesID, from time.Time, speed float64, outCh chan<- model.Event) (int, error) {
	if len(series) == 0 {
		ids, err := r.reader.ListSeries()
		if err != nil {
			return 0, err
		}
		series = ids
	}

	// Collect all bars across series, merged by time
	var all []model.Bar
	for _, id := range series {
		bars, err := r.reader.ReadBars(id, from)
		if err != nil {
			return 0, err
		}
		all = append(all, bars...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].TS.Before(all[j].TS) })

	if len(all) == 0 {
		log.Println("[replay] no bars found")
	} else {
		log.Printf("[replay] loaded %d bars across %d series, speed=%.1fx", len(all), len(series), speed)
	}

	var prevTS time.Time
	emitted := 0

	for _, b := range all {
		// Simulate time gaps between bars
		if speed > 0 && !prevTS.IsZero() {
			if gap := b.TS.Sub(prevTS); gap > 0 {
				scaled := time.Duration(float64(gap) / speed)
				if r.MaxGap > 0 && scaled > r.MaxGap {
					scaled = r.MaxGap
				}
				select {
				case <-ctx.Done():
					return emitted, ctx.Err()
				case <-time.After(scaled):
				}
			}
		}
		prevTS = b.TS

		if err := send(ctx, outCh, model.DataPoint(b)); err != nil {
			log.Printf("[replay] cancelled after %d bars", emitted)
			return emitted, err
		}
		emitted++
	}

	for _, id := range series {
		if err := send(ctx, outCh, model.BatchComplete(id)); err != nil {
			return emitted, err
		}
	}

	log.Printf("[replay] completed: %d bars replayed", emitted)
	return emitted, nil
}

func send(ctx context.Context, out chan<- model.Event, ev model.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- ev:
		return nil
	}
}
