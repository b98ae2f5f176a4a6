package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"srtrader/internal/execution"
	"srtrader/internal/model"
	"srtrader/internal/pipeline"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	series []model.Series

	mu     sync.Mutex
	resets []model.SeriesID
}

func (f *fakeBackend) Series() []model.Series { return f.series }

func (f *fakeBackend) find(id model.SeriesID) (model.Series, error) {
	for _, s := range f.series {
		if s.ID == id {
			return s, nil
		}
	}
	return model.Series{}, model.ErrUnknownSeries
}

func (f *fakeBackend) Current(_ context.Context, id model.SeriesID) (*pipeline.Snapshot, error) {
	def, err := f.find(id)
	if err != nil {
		return nil, err
	}
	t0 := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, 5)
	for i := range bars {
		bars[i] = model.Bar{Series: id, TS: t0.Add(time.Duration(i) * time.Second), Open: 1, High: 2, Low: 1, Close: 2}
	}
	return &pipeline.Snapshot{Series: def, Trigger: "query", Bars: bars}, nil
}

func (f *fakeBackend) Reset(id model.SeriesID) error {
	if _, err := f.find(id); err != nil {
		return err
	}
	f.mu.Lock()
	f.resets = append(f.resets, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Positions() []execution.Position {
	return []execution.Position{{Series: "6003", State: execution.StatePending, HasOrder: true, OrderPrice: 99.5}}
}

func (f *fakeBackend) Trades(limit int) ([]execution.TradeRecord, error) {
	return []execution.TradeRecord{{ID: 1, OrderID: "PAPER-1", Series: "6003", Price: 99.5}}[:min(limit, 1)], nil
}

func newTestServer(t *testing.T) (*Hub, *fakeBackend, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	backend := &fakeBackend{series: []model.Series{
		{ID: "6000", Symbol: "AAPL", Timeframe: "1D"},
		{ID: "6003", Symbol: "AAPL", Timeframe: "5s", Live: true},
	}}
	mux := http.NewServeMux()
	health := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"status":"healthy"}`)) })
	RegisterRoutes(mux, hub, backend, health, time.Now())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, backend, srv
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestREST_SeriesAndSnapshot(t *testing.T) {
	hub, _, srv := newTestServer(t)
	hub.broadcast(SeriesChannel("6003"), []byte(`{"trigger":"bar"}`))

	var list []SeriesInfo
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/series", &list))
	require.Len(t, list, 2)
	assert.Equal(t, "sr:6003", list[1].Channel)
	assert.Equal(t, int64(1), list[1].Seq)
	assert.True(t, list[1].Live)

	var snap pipeline.Snapshot
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/series/6003?bars=2", &snap))
	assert.Equal(t, "query", snap.Trigger)
	assert.Len(t, snap.Bars, 2)

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/series/nope", &errBody))
	assert.Contains(t, errBody["error"], "unknown series")
}

func TestREST_Reset(t *testing.T) {
	_, backend, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/series/6003/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	backend.mu.Lock()
	assert.Equal(t, []model.SeriesID{"6003"}, backend.resets)
	backend.mu.Unlock()

	resp, err = http.Get(srv.URL + "/api/series/6003/reset")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestREST_PositionsTradesHealth(t *testing.T) {
	_, _, srv := newTestServer(t)

	var positions []execution.Position
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/positions", &positions))
	assert.Equal(t, execution.StatePending, positions[0].State)

	var trades []execution.TradeRecord
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/trades?limit=5", &trades))
	assert.Equal(t, "PAPER-1", trades[0].OrderID)

	var health map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, "healthy", health["status"])
}

func TestREST_Missed(t *testing.T) {
	hub, _, srv := newTestServer(t)
	for i := 0; i < 5; i++ {
		hub.broadcast(SeriesChannel("6003"), []byte(`{}`))
	}

	var envelopes []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/missed?channel=sr:6003&from=2&to=4", &envelopes))
	require.Len(t, envelopes, 3)
	assert.Equal(t, 2.0, envelopes[0]["channel_seq"])

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/missed?channel=sr:6003", &errBody))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelopes reads one frame; coalesced frames are split on newlines.
func readEnvelopes(t *testing.T, conn *websocket.Conn) []map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var out []map[string]any
	for _, line := range strings.Split(string(raw), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestWS_InitialStateAndSubscribe(t *testing.T) {
	hub, _, srv := newTestServer(t)
	hub.broadcast(SeriesChannel("6000"), []byte(`{"trigger":"batch"}`))

	conn := dial(t, srv)
	initial := readEnvelopes(t, conn)
	require.Len(t, initial, 1)
	assert.Equal(t, "sr:6000", initial[0]["channel"])
	assert.Equal(t, true, initial[0]["initial"])

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "SUBSCRIBE", ReqID: "1", Series: []string{"6003"}}))
	ack := readEnvelopes(t, conn)
	assert.Equal(t, "SUBSCRIBED", ack[0]["type"])

	// Filtered out, then delivered.
	hub.broadcast(SeriesChannel("6000"), []byte(`{"trigger":"batch"}`))
	hub.broadcast(SeriesChannel("6003"), []byte(`{"trigger":"bar"}`))

	msgs := readEnvelopes(t, conn)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "sr:6003", msgs[0]["channel"])
	assert.Equal(t, "bar", msgs[0]["data"].(map[string]any)["trigger"])

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "PING", Ping: 42}))
	pong := readEnvelopes(t, conn)
	assert.Equal(t, "PONG", pong[0]["type"])
	assert.Equal(t, 42.0, pong[0]["ping"])

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "bogus"}))
	errMsg := readEnvelopes(t, conn)
	assert.Equal(t, "ERROR", errMsg[0]["type"])

	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_RunBroadcastsSnapshots(t *testing.T) {
	hub := NewHub(nil)
	ch := make(chan pipeline.Snapshot, 1)
	ch <- pipeline.Snapshot{Series: model.Series{ID: "6003"}, Trigger: "bar", ProcessedAt: time.Now().UTC()}
	close(ch)

	hub.Run(context.Background(), ch)

	assert.Equal(t, int64(1), hub.GetChannelSeq("sr:6003"))
	assert.Contains(t, hub.GetLatestAll(), "sr:6003")
	assert.Equal(t, 1, hub.Latency.Count())
	assert.Equal(t, "sr:6003", routeChannel("pub:sr:6003"))
}
