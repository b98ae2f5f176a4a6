package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"srtrader/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeries_Default(t *testing.T) {
	series, err := ParseSeries(DefaultSeries)
	require.NoError(t, err)
	require.Len(t, series, 4)
	assert.Equal(t, model.SeriesID("6000"), series[0].ID)
	assert.Equal(t, "1D", series[0].Timeframe)
	assert.False(t, series[0].Live)
	assert.True(t, series[3].Live)
	assert.Equal(t, "AAPL/5s", series[3].Label())
}

func TestParseSeries_SkipsInvalid(t *testing.T) {
	series, err := ParseSeries("bad, 7000:MSFT:1m , 7001:MSFT:5s:maybe, :X:1m")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "MSFT", series[0].Symbol)
}

func TestParseSeries_Errors(t *testing.T) {
	_, err := ParseSeries("")
	assert.Error(t, err)

	_, err = ParseSeries("1:A:1m,1:B:5s")
	assert.Error(t, err)
}

func TestLoadSeriesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
series:
  - id: "6000"
    symbol: AAPL
    timeframe: 1D
  - id: "6003"
    symbol: AAPL
    timeframe: 5s
    live: true
`), 0o644))

	cfg := &Config{SeriesFile: path, SeriesSpec: "ignored:X:1m"}
	series, err := cfg.Series()
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.True(t, series[1].Live)
	assert.Equal(t, model.SeriesID("6003"), series[1].ID)

	_, err = LoadSeriesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PROFIT_TARGET", "0.05")
	t.Setenv("STOP_LOSS", "not-a-number")
	t.Setenv("RECORD_BARS", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FEED_URL", "ws://feed:8080/")

	cfg := Load()
	assert.Equal(t, 0.05, cfg.ProfitTarget)
	assert.Equal(t, 0.02, cfg.StopLoss)
	assert.False(t, cfg.RecordBars)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "ws://feed:8080/", cfg.FeedURL)
}

func TestLoad_EmptyValueDisablesSinks(t *testing.T) {
	for _, key := range []string{"REDIS_ADDR", "SQLITE_PATH", "JOURNAL_PATH", "HTTP_ADDR", "METRICS_ADDR"} {
		t.Setenv(key, "")
	}
	t.Setenv("FEED_URL", "")

	cfg := Load()
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.SQLitePath)
	assert.Empty(t, cfg.JournalPath)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, "ws://localhost:8080/", cfg.FeedURL, "required settings still fall back")
	assert.True(t, cfg.AwaitHistory)
}

func TestLoad_UnsetSinksUseDefaults(t *testing.T) {
	for _, key := range []string{"REDIS_ADDR", "JOURNAL_PATH"} {
		t.Setenv(key, "x")
		os.Unsetenv(key)
	}

	cfg := Load()
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "data/journal.db", cfg.JournalPath)
}
