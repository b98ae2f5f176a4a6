// Package execution simulates order handling for long-only paper trading.
//
// The PaperEngine keeps one Position per series and is the only code that
// mutates it. Nothing here talks to a broker.
package execution

import (
	"time"

	"srtrader/internal/model"
)

// State is the lifecycle stage of a paper position.
type State string

const (
	StateFlat    State = "FLAT"    // no order, no position
	StatePending State = "PENDING" // order price set, not yet filled
	StateOpen    State = "OPEN"    // order filled, position held
)

// Position is the paper trading state of one series.
type Position struct {
	Series     model.SeriesID `json:"series"`
	State      State          `json:"state"`
	OrderID    string         `json:"order_id,omitempty"`
	Strategy   string         `json:"strategy,omitempty"`
	HasOrder   bool           `json:"has_order"`
	OrderPrice float64        `json:"order_price"` // entry price once Open
	TakeProfit float64        `json:"take_profit"`
	StopLoss   float64        `json:"stop_loss"`
	RunningPnL float64        `json:"running_pnl"` // meaningful only while Open
	Updates    int            `json:"updates"`     // order price changes after placement
	PlacedAt   time.Time      `json:"placed_at,omitempty"`
	FilledAt   time.Time      `json:"filled_at,omitempty"`
	LastBarAt  time.Time      `json:"last_bar_at,omitempty"`
}

// Order is emitted whenever an order price is set or moved.
type Order struct {
	OrderID    string         `json:"order_id"`
	Series     model.SeriesID `json:"series"`
	Strategy   string         `json:"strategy"`
	Price      float64        `json:"price"`
	Previous   float64        `json:"previous,omitempty"`
	Update     bool           `json:"update"`
	TakeProfit float64        `json:"take_profit"`
	StopLoss   float64        `json:"stop_loss"`
	PlacedAt   time.Time      `json:"placed_at"`
}

// Fill represents a simulated order fill.
type Fill struct {
	OrderID    string         `json:"order_id"`
	Series     model.SeriesID `json:"series"`
	Strategy   string         `json:"strategy"`
	Price      float64        `json:"price"`
	BarLow     float64        `json:"bar_low"`
	TakeProfit float64        `json:"take_profit"`
	StopLoss   float64        `json:"stop_loss"`
	PlacedAt   time.Time      `json:"placed_at"`
	FilledAt   time.Time      `json:"filled_at"`
}
