// Package pipeline is the synchronous entry point of the analysis core.
//
// Each event runs store -> detect -> cluster -> select -> paper update for
// its series under that series' lock, so bars of one series are applied in
// arrival order while different series proceed independently.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sort"
	"sync"
	"time"

	"srtrader/internal/barstore"
	"srtrader/internal/execution"
	"srtrader/internal/logger"
	"srtrader/internal/model"
	"srtrader/internal/pivot"
	"srtrader/internal/strategy"
)

// Processor owns the bar store and paper engine for a set of series.
type Processor struct {
	store    *barstore.Store
	selector strategy.EntrySelector
	paper    *execution.PaperEngine

	mu     sync.RWMutex
	series map[model.SeriesID]model.Series
	locks  map[model.SeriesID]*sync.Mutex

	// TradeAfterBatch holds paper trading on a live series until its first
	// BatchComplete, so backfilled history is analysed but never traded.
	TradeAfterBatch bool

	// OnError is called from Run for every event that failed.
	OnError func(ev model.Event, err error)
}

// New creates a Processor. Events for series not passed here (or added later
// with Register) are rejected with model.ErrUnknownSeries.
func New(store *barstore.Store, selector strategy.EntrySelector, paper *execution.PaperEngine, series ...model.Series) *Processor {
	p := &Processor{
		store:    store,
		selector: selector,
		paper:    paper,
		series:   make(map[model.SeriesID]model.Series),
		locks:    make(map[model.SeriesID]*sync.Mutex),
	}
	for _, s := range series {
		p.Register(s)
	}
	return p
}

// Register adds or replaces a series definition.
func (p *Processor) Register(s model.Series) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[s.ID] = s
	if _, ok := p.locks[s.ID]; !ok {
		p.locks[s.ID] = &sync.Mutex{}
	}
}

// Series returns the configured series, ordered by id.
func (p *Processor) Series() []model.Series {
	p.mu.RLock()
	out := make([]model.Series, 0, len(p.series))
	for _, s := range p.series {
		out = append(out, s)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Processor) lookup(id model.SeriesID) (model.Series, *sync.Mutex, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.series[id]
	if !ok {
		return model.Series{}, nil, fmt.Errorf("%w: %q", model.ErrUnknownSeries, id)
	}
	return s, p.locks[id], nil
}

// Process applies one event and returns the resulting snapshot.
//
// A data point on a live series always yields a tail snapshot (newest bar
// only). A data point on a historical series is stored and yields nil; its
// snapshot is produced when the batch-complete sentinel arrives. Errors
// never touch other series.
func (p *Processor) Process(ctx context.Context, ev model.Event) (*Snapshot, error) {
	def, lock, err := p.lookup(ev.Series)
	if err != nil {
		return nil, err
	}

	lock.Lock()
	defer lock.Unlock()

	switch ev.Kind {
	case model.KindDataPoint:
		if err := p.store.Append(ev.Series, ev.Bar); err != nil {
			return nil, err
		}
		if !def.Live {
			return nil, nil
		}
		ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(string(ev.Series), ev.Bar.TS))
		trade := !p.TradeAfterBatch || p.store.Batches(ev.Series) > 0
		snap := p.analyse(ctx, def, "bar", trade)
		if latest, ok := p.store.Latest(ev.Series); ok {
			snap.Bars = []model.Bar{latest}
			snap.Tail = true
		}
		return snap, nil

	case model.KindBatchComplete:
		n := p.store.MarkBatchComplete(ev.Series)
		ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(string(ev.Series), time.Now()))
		slog.DebugContext(ctx, "batch complete",
			append(logger.LogWithTrace(ctx), slog.String("series", string(ev.Series)), slog.Int("batch", n))...)
		return p.analyse(ctx, def, "batch", false), nil

	default:
		return nil, fmt.Errorf("series %s: unsupported event kind %d", ev.Series, ev.Kind)
	}
}

// analyse recomputes pivots for def. Live series also get an entry candidate
// and, when trade is set, a paper engine step.
func (p *Processor) analyse(ctx context.Context, def model.Series, trigger string, trade bool) *Snapshot {
	bars := p.store.Snapshot(def.ID)
	set := pivot.Find(bars)

	snap := &Snapshot{
		Series:      def,
		Trigger:     trigger,
		Bars:        bars,
		BarCount:    len(bars),
		Pivots:      set,
		Lines:       linesOf(set),
		ProcessedAt: time.Now().UTC(),
	}
	if !def.Live {
		return snap
	}

	var latest *model.Bar
	if len(bars) > 0 {
		latest = &bars[len(bars)-1]
	}

	var cand *strategy.Candidate
	if latest != nil {
		if c, ok := p.selector.Select(set, *latest); ok {
			cand = &c
		}
	}
	snap.Candidate = cand

	var pos execution.Position
	if trade {
		pos = p.paper.Evaluate(def.ID, latest, cand)
	} else {
		pos, _ = p.paper.Position(def.ID)
	}
	snap.Position = &pos

	slog.DebugContext(ctx, "series analysed", append(logger.LogWithTrace(ctx),
		slog.String("series", string(def.ID)),
		slog.Int("bars", len(bars)),
		slog.Int("supports", len(set.Supports)),
		slog.Int("resistances", len(set.Resistances)),
		slog.String("state", string(pos.State)))...)
	return snap
}

// Reset clears the bars and paper position of one series.
func (p *Processor) Reset(id model.SeriesID) error {
	_, lock, err := p.lookup(id)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()
	p.store.Clear(id)
	p.paper.Reset(id)
	log.Printf("[pipeline] series %s reset", id)
	return nil
}

// Current recomputes the snapshot of a series without applying an event.
func (p *Processor) Current(ctx context.Context, id model.SeriesID) (*Snapshot, error) {
	def, lock, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()
	return p.analyse(ctx, def, "query", false), nil
}

// Run processes events in arrival order and forwards snapshots to out.
// Failed events are logged and reported to OnError; they never stop the loop.
// Blocks until ctx is cancelled or events is closed.
func (p *Processor) Run(ctx context.Context, events <-chan model.Event, out chan<- Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			snap, err := p.Process(ctx, ev)
			if err != nil {
				log.Printf("[pipeline] %s %s rejected: %v", ev.Series, ev.Kind, err)
				if p.OnError != nil {
					p.OnError(ev, err)
				}
				continue
			}
			if snap == nil || out == nil {
				continue
			}
			select {
			case out <- *snap:
			case <-ctx.Done():
				return
			}
		}
	}
}
