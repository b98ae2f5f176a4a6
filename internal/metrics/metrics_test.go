package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.BarsTotal.WithLabelValues("6003").Inc()
	m.BarsTotal.WithLabelValues("6003").Inc()
	m.SetFeedConnected(true)
	m.SetChannelSaturation("snapshots", 16, 64)
	m.SetChannelSaturation("empty", 0, 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["srtrader_bars_total"])
	assert.Equal(t, 1.0, values["srtrader_feed_connected"])
	assert.Equal(t, 25.0, values["srtrader_channel_saturation_pct"])

	// A second registration on the same registry must panic.
	assert.Panics(t, func() { NewMetrics(reg) })
}

func serveHealth(t *testing.T, h *HealthStatus) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth_FeedOnly(t *testing.T) {
	h := NewHealthStatus()

	code, body := serveHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])

	h.SetFeedConnected(true)
	h.SetLastBarTime(time.Now())
	h.SetSeries(4)
	code, body = serveHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, 4.0, body["series"])
	assert.NotEmpty(t, body["bar_age"])
}

func TestHealth_SQLiteCheck(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)

	h := NewHealthStatus()
	h.SetFeedConnected(true)
	h.CheckSQLite(context.Background(), db)
	code, body := serveHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["sqlite_ok"])

	db.Close()
	h.CheckSQLite(context.Background(), db)
	h.SetFeedConnected(false)
	code, body = serveHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}
