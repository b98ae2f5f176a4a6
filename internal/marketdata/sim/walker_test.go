package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalker_HistoryIsValidAndOrdered(t *testing.T) {
	end := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	w := NewWalker("6001", time.Hour, 180, 42)

	bars := w.History(200, end)
	require.Len(t, bars, 200)
	assert.Equal(t, end, bars[len(bars)-1].TS)
	for i, b := range bars {
		require.NoError(t, b.Validate(), "bar %d", i)
		if i > 0 {
			assert.Equal(t, time.Hour, b.TS.Sub(bars[i-1].TS))
			assert.Equal(t, bars[i-1].Close, b.Open, "bars chain close to open")
		}
	}
}

func TestWalker_DeterministicForSeed(t *testing.T) {
	end := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	a := NewWalker("6003", 5*time.Second, 100, 7).History(20, end)
	b := NewWalker("6003", 5*time.Second, 100, 7).History(20, end)
	assert.Equal(t, a, b)
}
