package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"srtrader/internal/execution"
	"srtrader/internal/model"
	"srtrader/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[model.SeriesID]*pipeline.Snapshot

func (m mapSource) LatestSnapshot(_ context.Context, id model.SeriesID) (*pipeline.Snapshot, error) {
	return m[id], nil
}

func TestRemoteBackend(t *testing.T) {
	series := []model.Series{
		{ID: "6000", Symbol: "AAPL", Timeframe: "1D"},
		{ID: "6003", Symbol: "AAPL", Timeframe: "5s", Live: true},
		{ID: "6004", Symbol: "MSFT", Timeframe: "5s", Live: true},
	}
	src := mapSource{
		"6000": {Series: series[0], Trigger: "batch"},
		"6003": {Series: series[1], Trigger: "bar", Position: &execution.Position{Series: "6003", State: execution.StateOpen, OrderPrice: 9}},
	}
	b := NewRemoteBackend(series, src, nil)

	t.Run("current", func(t *testing.T) {
		snap, err := b.Current(context.Background(), "6000")
		require.NoError(t, err)
		assert.Equal(t, "batch", snap.Trigger)

		_, err = b.Current(context.Background(), "6004")
		assert.ErrorIs(t, err, ErrNoSnapshot)

		_, err = b.Current(context.Background(), "7777")
		assert.ErrorIs(t, err, model.ErrUnknownSeries)
	})

	t.Run("positions from live snapshots", func(t *testing.T) {
		pos := b.Positions()
		require.Len(t, pos, 1)
		assert.Equal(t, execution.StateOpen, pos[0].State)
		assert.Equal(t, 9.0, pos[0].OrderPrice)
	})

	t.Run("read-only", func(t *testing.T) {
		assert.ErrorIs(t, b.Reset("6003"), ErrReadOnly)
		trades, err := b.Trades(10)
		require.NoError(t, err)
		assert.Empty(t, trades)
	})
}

func TestRemoteBackendRoutes(t *testing.T) {
	series := []model.Series{{ID: "6003", Symbol: "AAPL", Timeframe: "5s", Live: true}}
	b := NewRemoteBackend(series, mapSource{}, nil)

	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHub(nil), b, http.NotFoundHandler(), time.Now())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/series/6003")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/series/6003/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
