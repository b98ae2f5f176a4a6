package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"srtrader/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

func mkBar(series model.SeriesID, i int, low float64) model.Bar {
	return model.Bar{
		Series: series,
		TS:     t0.Add(time.Duration(i) * 5 * time.Second),
		Open:   low + 0.5,
		High:   low + 1,
		Low:    low,
		Close:  low + 0.25,
	}
}

func TestWriterReader_RoundTripOrdered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	w, err := New(WriterConfig{DBPath: path})
	require.NoError(t, err)
	defer w.Close()

	// Written out of order on purpose; reads come back by timestamp.
	require.NoError(t, w.InsertBatch([]model.Bar{
		mkBar("6003", 2, 102), mkBar("6003", 0, 100), mkBar("6003", 1, 101), mkBar("6000", 0, 50),
	}))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	bars, err := r.ReadBars("6003", time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, mkBar("6003", 0, 100), bars[0])
	assert.Equal(t, 102.0, bars[2].Low)

	bars, err = r.ReadBars("6003", t0)
	require.NoError(t, err)
	assert.Len(t, bars, 2, "after is exclusive")

	ids, err := r.ListSeries()
	require.NoError(t, err)
	assert.Equal(t, []model.SeriesID{"6000", "6003"}, ids)

	last, err := w.LastTimestamp("6003")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(10*time.Second), last)

	last, err = w.LastTimestamp("none")
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestWriter_RunFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	w, err := New(WriterConfig{DBPath: path})
	require.NoError(t, err)
	defer w.Close()

	var committed int
	w.OnCommit = func(n int, _ time.Duration) { committed += n }

	ch := make(chan model.Bar, 10)
	for i := 0; i < 5; i++ {
		ch <- mkBar("6003", i, 100)
	}
	// Re-sent history collapses onto the same rows.
	ch <- mkBar("6003", 0, 100)
	close(ch)
	w.Run(context.Background(), ch)

	assert.Equal(t, 6, committed)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	bars, err := r.ReadBars("6003", time.Time{})
	require.NoError(t, err)
	assert.Len(t, bars, 5)
}
