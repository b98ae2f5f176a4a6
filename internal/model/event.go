package model

// EventKind tags what an inbound Event carries.
type EventKind uint8

const (
	// KindDataPoint carries one bar.
	KindDataPoint EventKind = iota + 1
	// KindBatchComplete marks the end of a finite historical batch.
	KindBatchComplete
)

func (k EventKind) String() string {
	switch k {
	case KindDataPoint:
		return "data_point"
	case KindBatchComplete:
		return "batch_complete"
	default:
		return "unknown"
	}
}

// Event is one decoded message from the market-data collaborator.
// Bar is only meaningful when Kind == KindDataPoint.
type Event struct {
	Kind   EventKind
	Series SeriesID
	Bar    Bar
}

// DataPoint wraps a bar as an event.
func DataPoint(b Bar) Event {
	return Event{Kind: KindDataPoint, Series: b.Series, Bar: b}
}

// BatchComplete builds the end-of-batch sentinel for a series.
func BatchComplete(series SeriesID) Event {
	return Event{Kind: KindBatchComplete, Series: series}
}
