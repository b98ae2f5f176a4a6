package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// SeriesID identifies one instrument+timeframe request, e.g. "6003".
type SeriesID string

// Bar is a single OHLC observation belonging to one series.
// Prices are plain float64: the feed delivers decimal quotes, not paise.
type Bar struct {
	Series SeriesID  `json:"series"`
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
}

// Height returns high - low.
func (b *Bar) Height() float64 {
	return b.High - b.Low
}

// Validate reports whether the bar can enter the store. Any failure wraps
// ErrMalformedBar.
func (b *Bar) Validate() error {
	if b.Series == "" {
		return fmt.Errorf("%w: missing series id", ErrMalformedBar)
	}
	if b.TS.IsZero() || b.TS.UnixMilli() <= 0 {
		return fmt.Errorf("%w: series %s: non-positive timestamp", ErrMalformedBar, b.Series)
	}
	for _, p := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: series %s: non-finite price", ErrMalformedBar, b.Series)
		}
	}
	if b.Low > b.High {
		return fmt.Errorf("%w: series %s: low %g > high %g", ErrMalformedBar, b.Series, b.Low, b.High)
	}
	if b.Open < b.Low || b.Open > b.High || b.Close < b.Low || b.Close > b.High {
		return fmt.Errorf("%w: series %s: open/close outside [%g, %g]", ErrMalformedBar, b.Series, b.Low, b.High)
	}
	return nil
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
