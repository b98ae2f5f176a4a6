package gateway

import (
	"context"
	"testing"
	"time"

	"srtrader/internal/barstore"
	"srtrader/internal/execution"
	"srtrader/internal/model"
	"srtrader/internal/pipeline"
	"srtrader/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast_LiveEnvelopeSizeStaysFlat(t *testing.T) {
	live := model.Series{ID: "6003", Symbol: "AAPL", Timeframe: "5s", Live: true}
	proc := pipeline.New(barstore.New(), strategy.NewNearestSupport(),
		execution.NewPaperEngine(execution.Config{ProfitTarget: 0.01, StopLoss: 0.02}), live)
	hub := NewHub(nil)
	ch := SeriesChannel(live.ID)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	envelope := func(i int) int {
		low := 100 + float64(i%10)
		snap, err := proc.Process(ctx, model.DataPoint(model.Bar{
			Series: live.ID,
			TS:     t0.Add(time.Duration(i) * 5 * time.Second),
			Open:   low,
			High:   low + 1,
			Low:    low,
			Close:  low + 1,
		}))
		require.NoError(t, err)
		require.NotNil(t, snap)
		hub.broadcast(ch, snap.JSON())
		seq := hub.GetChannelSeq(ch)
		got := hub.GetReplayRange(ch, seq, seq)
		require.Len(t, got, 1)
		return len(got[0])
	}

	var early, late int
	for i := 0; i < 4000; i++ {
		n := envelope(i)
		if i == 200 {
			early = n
		}
		late = n
	}
	assert.InDelta(t, early, late, 128, "envelope grew from %d to %d bytes", early, late)
	assert.Equal(t, int64(4000), hub.GetChannelSeq(ch))
}
