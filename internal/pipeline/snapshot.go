package pipeline

import (
	"encoding/json"
	"time"

	"srtrader/internal/execution"
	"srtrader/internal/model"
	"srtrader/internal/pivot"
	"srtrader/internal/strategy"
)

// Line is a horizontal level a chart draws from From to the latest bar.
type Line struct {
	Role  pivot.Role `json:"role"`
	Price float64    `json:"price"`
	From  time.Time  `json:"from"`
}

// Snapshot is the read-only state of one series after an event.
// Candidate and Position are set for live series only.
//
// Batch and query snapshots carry the whole bar history. Per-bar snapshots
// of a live series set Tail and carry only the newest bar; BarCount is the
// history length either way.
type Snapshot struct {
	Series      model.Series        `json:"series"`
	Trigger     string              `json:"trigger"`
	Bars        []model.Bar         `json:"bars"`
	BarCount    int                 `json:"bar_count"`
	Tail        bool                `json:"tail,omitempty"`
	Pivots      pivot.PivotSet      `json:"pivots"`
	Lines       []Line              `json:"lines"`
	Candidate   *strategy.Candidate `json:"candidate,omitempty"`
	Position    *execution.Position `json:"position,omitempty"`
	ProcessedAt time.Time           `json:"ts"`
}

// Latest returns the last bar of the snapshot.
func (s *Snapshot) Latest() (model.Bar, bool) {
	if len(s.Bars) == 0 {
		return model.Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// JSON returns the JSON-encoded snapshot (ignoring errors for hot-path usage).
func (s *Snapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

func linesOf(set pivot.PivotSet) []Line {
	lines := make([]Line, 0, len(set.Supports)+len(set.Resistances))
	for _, p := range set.Supports {
		lines = append(lines, Line{Role: p.Role, Price: p.Price(), From: p.Time()})
	}
	for _, p := range set.Resistances {
		lines = append(lines, Line{Role: p.Role, Price: p.Price(), From: p.Time()})
	}
	return lines
}
