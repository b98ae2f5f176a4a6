package model

import (
	"strconv"
	"time"
)

// Series describes one configured bar series.
type Series struct {
	ID        SeriesID `json:"id" yaml:"id"`
	Symbol    string   `json:"symbol" yaml:"symbol"`
	Timeframe string   `json:"timeframe" yaml:"timeframe"`

	// Live series are re-analysed and paper traded on every bar; historical
	// series only on batch completion.
	Live bool `json:"live" yaml:"live"`
}

// Label returns "SYMBOL/timeframe".
func (s Series) Label() string {
	return s.Symbol + "/" + s.Timeframe
}

// BarDuration parses Timeframe ("5s", "1m", "1H", "1D", "1W", "1M") into
// the span of one bar. Lower-case m is minutes, upper-case M is a 30-day
// month. Returns false for anything else.
func (s Series) BarDuration() (time.Duration, bool) {
	tf := s.Timeframe
	if len(tf) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	var unit time.Duration
	switch tf[len(tf)-1] {
	case 's', 'S':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h', 'H':
		unit = time.Hour
	case 'd', 'D':
		unit = 24 * time.Hour
	case 'w', 'W':
		unit = 7 * 24 * time.Hour
	case 'M':
		unit = 30 * 24 * time.Hour
	default:
		return 0, false
	}
	return time.Duration(n) * unit, true
}
