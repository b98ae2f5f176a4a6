package model

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBar() Bar {
	return Bar{
		Series: "6003",
		TS:     time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
		Open:   101,
		High:   103,
		Low:    100,
		Close:  102,
	}
}

func TestBar_ValidateAccepts(t *testing.T) {
	b := validBar()
	require.NoError(t, b.Validate())
	assert.Equal(t, 3.0, b.Height())
}

func TestBar_ValidateRejects(t *testing.T) {
	cases := map[string]func(b *Bar){
		"missing series":   func(b *Bar) { b.Series = "" },
		"zero time":        func(b *Bar) { b.TS = time.Time{} },
		"epoch time":       func(b *Bar) { b.TS = time.UnixMilli(0) },
		"nan low":          func(b *Bar) { b.Low = math.NaN() },
		"inf high":         func(b *Bar) { b.High = math.Inf(1) },
		"low above high":   func(b *Bar) { b.Low, b.High = 104, 103 },
		"open below low":   func(b *Bar) { b.Open = 99 },
		"close above high": func(b *Bar) { b.Close = 104 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			b := validBar()
			mutate(&b)
			err := b.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedBar), "got %v", err)
		})
	}
}

func TestEventConstructors(t *testing.T) {
	b := validBar()
	ev := DataPoint(b)
	assert.Equal(t, KindDataPoint, ev.Kind)
	assert.Equal(t, SeriesID("6003"), ev.Series)
	assert.Equal(t, b, ev.Bar)

	sentinel := BatchComplete("6000")
	assert.Equal(t, KindBatchComplete, sentinel.Kind)
	assert.Equal(t, SeriesID("6000"), sentinel.Series)
	assert.Equal(t, "batch_complete", sentinel.Kind.String())
}
