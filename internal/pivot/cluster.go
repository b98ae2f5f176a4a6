package pivot

import (
	"sort"

	"srtrader/internal/model"
)

// PivotSet is the deduplicated support and resistance levels of one series.
// Supports are ordered ascending by low, resistances descending by high.
type PivotSet struct {
	Supports    []Pivot `json:"supports"`
	Resistances []Pivot `json:"resistances"`
}

// Empty reports whether the set holds no levels at all.
func (s PivotSet) Empty() bool {
	return len(s.Supports) == 0 && len(s.Resistances) == 0
}

// AverageBarHeight is the mean of high-low over bars with a positive
// timestamp. ok is false when there are no such bars.
func AverageBarHeight(bars []model.Bar) (avg float64, ok bool) {
	bars = usable(bars)
	if len(bars) == 0 {
		return 0, false
	}
	var sum float64
	for i := range bars {
		sum += bars[i].Height()
	}
	return sum / float64(len(bars)), true
}

// Dedup walks pivots in the given order and keeps a pivot only if its price
// is more than threshold away from every pivot kept so far. The first pivot
// is always kept.
func Dedup(pivots []Pivot, threshold float64) []Pivot {
	kept := make([]Pivot, 0, len(pivots))
	for _, cand := range pivots {
		distinct := true
		for _, k := range kept {
			d := cand.Price() - k.Price()
			if d < 0 {
				d = -d
			}
			if d <= threshold {
				distinct = false
				break
			}
		}
		if distinct {
			kept = append(kept, cand)
		}
	}
	return kept
}

// Cluster sorts the candidates (supports by ascending low, resistances by
// descending high) and dedups each side with a threshold of twice the
// average bar height of bars. With no bars it returns an empty set.
func Cluster(c Candidates, bars []model.Bar) PivotSet {
	avg, ok := AverageBarHeight(bars)
	if !ok {
		return PivotSet{Supports: []Pivot{}, Resistances: []Pivot{}}
	}
	threshold := 2 * avg

	supports := append([]Pivot(nil), c.Supports...)
	sort.SliceStable(supports, func(i, j int) bool {
		return supports[i].Price() < supports[j].Price()
	})
	resistances := append([]Pivot(nil), c.Resistances...)
	sort.SliceStable(resistances, func(i, j int) bool {
		return resistances[i].Price() > resistances[j].Price()
	})

	return PivotSet{
		Supports:    Dedup(supports, threshold),
		Resistances: Dedup(resistances, threshold),
	}
}

// Find runs detection and clustering over bars.
func Find(bars []model.Bar) PivotSet {
	return Cluster(Detect(bars), bars)
}
