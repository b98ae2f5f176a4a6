// Package sim generates random-walk OHLC bars for demo feeds and tests.
package sim

import (
	"math"
	"math/rand"
	"time"

	"srtrader/internal/model"
)

// Walker produces consecutive bars of one series. Not safe for concurrent use.
type Walker struct {
	series model.SeriesID
	step   time.Duration
	price  float64
	rng    *rand.Rand

	// Volatility is the max fractional move per bar (0.004 = 0.4%).
	Volatility float64
}

// NewWalker creates a walker starting at price, emitting one bar per step.
func NewWalker(series model.SeriesID, step time.Duration, price float64, seed int64) *Walker {
	return &Walker{
		series:     series,
		step:       step,
		price:      price,
		rng:        rand.New(rand.NewSource(seed)),
		Volatility: 0.004,
	}
}

// Next returns the bar starting at ts.
func (w *Walker) Next(ts time.Time) model.Bar {
	open := w.price
	close := open * (1 + (w.rng.Float64()*2-1)*w.Volatility)
	if close < 0.01 {
		close = 0.01
	}
	wick := open * w.Volatility / 2
	high := math.Max(open, close) + w.rng.Float64()*wick
	low := math.Min(open, close) - w.rng.Float64()*wick
	if low < 0.01 {
		low = 0.01
	}
	w.price = close

	return model.Bar{
		Series: w.series,
		TS:     ts,
		Open:   round2(open),
		High:   round2(high),
		Low:    round2(low),
		Close:  round2(close),
	}
}

// History returns n bars ending with the bar that starts at end.
func (w *Walker) History(n int, end time.Time) []model.Bar {
	bars := make([]model.Bar, n)
	start := end.Add(-time.Duration(n-1) * w.step)
	for i := range bars {
		bars[i] = w.Next(start.Add(time.Duration(i) * w.step))
	}
	return bars
}

// round2 rounds to cents. Rounding is monotone, so low <= open, close <= high
// still holds afterwards.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
