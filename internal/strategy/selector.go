// Package strategy turns support/resistance levels into trade entry candidates.
//
// An EntrySelector receives the current PivotSet and the latest bar of a
// series and proposes at most one price at which a simulated long order
// would be placed.
package strategy

import (
	"sort"

	"srtrader/internal/model"
	"srtrader/internal/pivot"
)

// Candidate is a proposed long entry level.
type Candidate struct {
	Strategy string         `json:"strategy"`
	Series   model.SeriesID `json:"series"`
	Pivot    pivot.Pivot    `json:"pivot"`
	Price    float64        `json:"price"`
}

// EntrySelector is the interface entry rules implement.
type EntrySelector interface {
	// Name returns the unique name of the selector.
	Name() string

	// Select returns the entry candidate for latest, or false if no level
	// qualifies. It must not retain or mutate set.
	Select(set pivot.PivotSet, latest model.Bar) (Candidate, bool)
}

// NearestSupport picks the highest support whose price is strictly below the
// latest bar's low.
type NearestSupport struct{}

// NewNearestSupport creates the nearest-support selector.
func NewNearestSupport() *NearestSupport {
	return &NearestSupport{}
}

func (NearestSupport) Name() string { return "nearest_support" }

func (s NearestSupport) Select(set pivot.PivotSet, latest model.Bar) (Candidate, bool) {
	if len(set.Supports) == 0 {
		return Candidate{}, false
	}

	ordered := make([]pivot.Pivot, len(set.Supports))
	copy(ordered, set.Supports)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Price() > ordered[j].Price()
	})

	for _, p := range ordered {
		if p.Price() < latest.Low {
			return Candidate{
				Strategy: s.Name(),
				Series:   latest.Series,
				Pivot:    p,
				Price:    p.Price(),
			}, true
		}
	}
	return Candidate{}, false
}
