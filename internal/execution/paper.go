package execution

import (
	"log"
	"sort"
	"sync"

	"srtrader/internal/model"
	"srtrader/internal/strategy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config holds the reporting offsets applied at order placement.
// Both are fractions of the entry price: 0.01 = 1%.
type Config struct {
	ProfitTarget float64
	StopLoss     float64
}

// PaperEngine simulates a single long position per series.
// Safe for concurrent use; callers must still deliver bars of one series in
// arrival order.
type PaperEngine struct {
	mu        sync.RWMutex
	cfg       Config
	positions map[model.SeriesID]*Position
	fills     []Fill

	// Optional hooks, called after the engine lock is released.
	OnOrder func(Order)
	OnFill  func(Fill)
}

// NewPaperEngine creates a paper engine with the given offsets.
func NewPaperEngine(cfg Config) *PaperEngine {
	return &PaperEngine{
		cfg:       cfg,
		positions: make(map[model.SeriesID]*Position),
		fills:     make([]Fill, 0, 64),
	}
}

// Evaluate advances the position of series with one live bar and the current
// entry candidate (nil when none). The steps run in this order:
//
//  1. fill: not Open, order set and latest.Low <= order price -> Open
//  2. place/move: only if step 1 did not fill; candidate present and
//     either no order yet or a different price -> Pending at candidate price
//  3. mark: while Open, RunningPnL = latest.Close - order price
//
// With an empty series or a nil bar nothing changes.
func (e *PaperEngine) Evaluate(series model.SeriesID, latest *model.Bar, cand *strategy.Candidate) Position {
	if series == "" || latest == nil {
		e.mu.RLock()
		defer e.mu.RUnlock()
		if pos, ok := e.positions[series]; ok {
			return *pos
		}
		return Position{Series: series, State: StateFlat}
	}

	var (
		placed *Order
		filled *Fill
	)

	e.mu.Lock()
	pos, ok := e.positions[series]
	if !ok {
		pos = &Position{Series: series, State: StateFlat}
		e.positions[series] = pos
	}
	pos.LastBarAt = latest.TS

	if pos.State != StateOpen && pos.HasOrder && latest.Low <= pos.OrderPrice {
		pos.State = StateOpen
		pos.FilledAt = latest.TS
		f := Fill{
			OrderID:    pos.OrderID,
			Series:     series,
			Strategy:   pos.Strategy,
			Price:      pos.OrderPrice,
			BarLow:     latest.Low,
			TakeProfit: pos.TakeProfit,
			StopLoss:   pos.StopLoss,
			PlacedAt:   pos.PlacedAt,
			FilledAt:   latest.TS,
		}
		e.fills = append(e.fills, f)
		filled = &f
	} else if pos.State != StateOpen && cand != nil && (!pos.HasOrder || pos.OrderPrice != cand.Price) {
		o := Order{
			OrderID:  pos.OrderID,
			Series:   series,
			Strategy: cand.Strategy,
			Price:    cand.Price,
			PlacedAt: latest.TS,
		}
		if pos.HasOrder {
			o.Update = true
			o.Previous = pos.OrderPrice
			pos.Updates++
		} else {
			o.OrderID = "PAPER-" + uuid.NewString()
			pos.OrderID = o.OrderID
		}
		o.TakeProfit, o.StopLoss = e.levels(cand.Price)

		pos.State = StatePending
		pos.HasOrder = true
		pos.OrderPrice = cand.Price
		pos.Strategy = cand.Strategy
		pos.TakeProfit = o.TakeProfit
		pos.StopLoss = o.StopLoss
		pos.PlacedAt = latest.TS
		placed = &o
	}

	if pos.State == StateOpen {
		pos.RunningPnL = latest.Close - pos.OrderPrice
	}
	out := *pos
	e.mu.Unlock()

	if placed != nil {
		if placed.Update {
			log.Printf("[paper] %s order %s moved %.4f -> %.4f (tp=%.4f sl=%.4f)",
				series, placed.OrderID, placed.Previous, placed.Price, placed.TakeProfit, placed.StopLoss)
		} else {
			log.Printf("[paper] %s BUY order %s placed at %.4f (tp=%.4f sl=%.4f) strategy=%s",
				series, placed.OrderID, placed.Price, placed.TakeProfit, placed.StopLoss, placed.Strategy)
		}
		if e.OnOrder != nil {
			e.OnOrder(*placed)
		}
	}
	if filled != nil {
		log.Printf("[paper] %s order %s filled at %.4f (bar low=%.4f)",
			series, filled.OrderID, filled.Price, filled.BarLow)
		if e.OnFill != nil {
			e.OnFill(*filled)
		}
	}
	return out
}

// levels computes the take-profit and stop-loss prices for entry.
func (e *PaperEngine) levels(entry float64) (takeProfit, stopLoss float64) {
	one := decimal.NewFromInt(1)
	d := decimal.NewFromFloat(entry)
	takeProfit, _ = d.Mul(one.Add(decimal.NewFromFloat(e.cfg.ProfitTarget))).Round(8).Float64()
	stopLoss, _ = d.Mul(one.Sub(decimal.NewFromFloat(e.cfg.StopLoss))).Round(8).Float64()
	return takeProfit, stopLoss
}

// Position returns the current position of series.
func (e *PaperEngine) Position(series model.SeriesID) (Position, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pos, ok := e.positions[series]
	if !ok {
		return Position{Series: series, State: StateFlat}, false
	}
	return *pos, true
}

// Positions returns a snapshot of every tracked position, ordered by series.
func (e *PaperEngine) Positions() []Position {
	e.mu.RLock()
	out := make([]Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Series < out[j].Series })
	return out
}

// GetFills returns a snapshot of all fills.
func (e *PaperEngine) GetFills() []Fill {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := make([]Fill, len(e.fills))
	copy(cp, e.fills)
	return cp
}

// Reset returns series to Flat.
func (e *PaperEngine) Reset(series model.SeriesID) {
	e.mu.Lock()
	delete(e.positions, series)
	e.mu.Unlock()
}
