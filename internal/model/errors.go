package model

import "errors"

var (
	// ErrMalformedBar is returned for bars that violate the OHLC contract.
	ErrMalformedBar = errors.New("malformed bar")

	// ErrOutOfOrderBar is returned when a bar is older than the series tail.
	ErrOutOfOrderBar = errors.New("out-of-order bar")

	// ErrUnknownSeries is returned for events on a series that is not configured.
	ErrUnknownSeries = errors.New("unknown series")
)
