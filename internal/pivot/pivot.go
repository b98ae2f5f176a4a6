// Package pivot finds support and resistance levels in a bar sequence.
//
// Detection is a single linear pass over the bars that flags local lows as
// support and local highs as resistance. Clustering then collapses pivots whose
// prices sit within two average bar heights of an already kept level.
package pivot

import (
	"time"

	"srtrader/internal/model"
)

// Role says whether a pivot is a support or a resistance level.
type Role string

const (
	RoleSupport    Role = "support"
	RoleResistance Role = "resistance"
)

// Pivot is one bar classified as a local extreme.
type Pivot struct {
	Index int       `json:"index"` // position in the sentinel-free bar sequence
	Bar   model.Bar `json:"bar"`
	Role  Role      `json:"role"`
}

// Price is the level the pivot stands for: low for support, high for resistance.
func (p Pivot) Price() float64 {
	if p.Role == RoleResistance {
		return p.Bar.High
	}
	return p.Bar.Low
}

// Time is the timestamp a renderer starts the level line from.
func (p Pivot) Time() time.Time {
	return p.Bar.TS
}

// Candidates holds raw detector output, in bar order.
type Candidates struct {
	Supports    []Pivot
	Resistances []Pivot
}

// Detect classifies every bar at index i with 0 < i < n-2. The first bar and
// the last two bars are never classified.
//
//	support:    bars[i-1].Low  >= bars[i].Low  && bars[i+1].Low  > bars[i].Low
//	resistance: bars[i-1].High <= bars[i].High && bars[i+1].High < bars[i].High
//
// A bar may be both (an outside bar) or neither.
func Detect(bars []model.Bar) Candidates {
	bars = usable(bars)
	var c Candidates
	n := len(bars)
	for i := 1; i < n-2; i++ {
		prev, cur, next := &bars[i-1], &bars[i], &bars[i+1]
		if prev.Low >= cur.Low && next.Low > cur.Low {
			c.Supports = append(c.Supports, Pivot{Index: i, Bar: *cur, Role: RoleSupport})
		}
		if prev.High <= cur.High && next.High < cur.High {
			c.Resistances = append(c.Resistances, Pivot{Index: i, Bar: *cur, Role: RoleResistance})
		}
	}
	return c
}

// usable drops bars without a positive timestamp. The input slice is
// returned as-is when every bar qualifies.
func usable(bars []model.Bar) []model.Bar {
	for i := range bars {
		if bars[i].TS.UnixMilli() > 0 {
			continue
		}
		out := make([]model.Bar, 0, len(bars))
		out = append(out, bars[:i]...)
		for _, b := range bars[i+1:] {
			if b.TS.UnixMilli() > 0 {
				out = append(out, b)
			}
		}
		return out
	}
	return bars
}
