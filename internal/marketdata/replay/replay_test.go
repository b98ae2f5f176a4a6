package replay

import (
	"context"
	"testing"
	"time"

	"srtrader/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memReader struct {
	bars map[model.SeriesID][]model.Bar
}

func (m *memReader) ReadBars(id model.SeriesID, after time.Time) ([]model.Bar, error) {
	var out []model.Bar
	for _, b := range m.bars[id] {
		if after.IsZero() || b.TS.After(after) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memReader) ListSeries() ([]model.SeriesID, error) {
	return []model.SeriesID{"6000", "6003"}, nil
}

func (m *memReader) Close() error { return nil }

var t0 = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

func bar(id model.SeriesID, sec int) model.Bar {
	return model.Bar{Series: id, TS: t0.Add(time.Duration(sec) * time.Second), Open: 1, High: 2, Low: 1, Close: 2}
}

func TestReplayer_MergesByTimeThenSentinels(t *testing.T) {
	r := New(&memReader{bars: map[model.SeriesID][]model.Bar{
		"6000": {bar("6000", 0), bar("6000", 10)},
		"6003": {bar("6003", 5), bar("6003", 15)},
	}})

	out := make(chan model.Event, 16)
	n, err := r.Run(context.Background(), nil, time.Time{}, 0, out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	close(out)

	var got []string
	for ev := range out {
		got = append(got, string(ev.Series)+":"+ev.Kind.String())
	}
	assert.Equal(t, []string{
		"6000:data_point", "6003:data_point", "6000:data_point", "6003:data_point",
		"6000:batch_complete", "6003:batch_complete",
	}, got)
}

func TestReplayer_FromFilterAndCancel(t *testing.T) {
	r := New(&memReader{bars: map[model.SeriesID][]model.Bar{
		"6003": {bar("6003", 0), bar("6003", 5), bar("6003", 10)},
	}})

	out := make(chan model.Event, 16)
	n, err := r.Run(context.Background(), []model.SeriesID{"6003"}, t0, 0, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, []model.SeriesID{"6003"}, time.Time{}, 0, make(chan model.Event))
	assert.ErrorIs(t, err, context.Canceled)
}
