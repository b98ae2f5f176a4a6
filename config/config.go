package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"srtrader/internal/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSeries mirrors the classic chart layout: three historical series
// (3 months of days, a week of hours, an hour of minutes) and one live
// 5-second series.
const DefaultSeries = "6000:AAPL:1D,6001:AAPL:1H,6002:AAPL:1m,6003:AAPL:5s:live"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Bar feed
	FeedURL string

	// Series definitions: inline list or a YAML file (file wins)
	SeriesSpec string
	SeriesFile string

	// Paper trading offsets (fractions of entry price)
	ProfitTarget float64
	StopLoss     float64

	// Live series trade only after their history batch completes
	AwaitHistory bool

	// Infrastructure. Set an address or path to "" to disable that sink.
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	JournalPath   string
	RecordBars    bool
	HTTPAddr      string
	MetricsAddr   string

	// Notifications
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
	SummaryCron      string

	LogLevel slog.Level
}

// Load reads an optional .env file, then configuration from environment
// variables with sensible defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env ignored: %v", err)
	}

	return &Config{
		FeedURL: getEnv("FEED_URL", "ws://localhost:8080/"),

		SeriesSpec: getEnv("SERIES", DefaultSeries),
		SeriesFile: getEnv("SERIES_FILE", ""),

		ProfitTarget: getFloat("PROFIT_TARGET", 0.01),
		StopLoss:     getFloat("STOP_LOSS", 0.02),
		AwaitHistory: getBool("AWAIT_HISTORY", true),

		RedisAddr:     getOptional("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getOptional("SQLITE_PATH", "data/bars.db"),
		JournalPath:   getOptional("JOURNAL_PATH", "data/journal.db"),
		RecordBars:    getBool("RECORD_BARS", true),
		HTTPAddr:      getOptional("HTTP_ADDR", ":8090"),
		MetricsAddr:   getOptional("METRICS_ADDR", ":9090"),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		SummaryCron:      getEnv("SUMMARY_CRON", "0 */15 * * * *"),

		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
	}
}

// Series returns the configured series, from SeriesFile when set, otherwise
// from SeriesSpec.
func (c *Config) Series() ([]model.Series, error) {
	if c.SeriesFile != "" {
		return LoadSeriesFile(c.SeriesFile)
	}
	return ParseSeries(c.SeriesSpec)
}

// ParseSeries parses "id:symbol:timeframe[:live],..." into series definitions.
// Invalid entries are skipped; duplicate ids are an error.
func ParseSeries(spec string) ([]model.Series, error) {
	var out []model.Series
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		seg := strings.Split(part, ":")
		if len(seg) < 3 || len(seg) > 4 {
			log.Printf("[config] skipping invalid series entry: %q", part)
			continue
		}
		s := model.Series{
			ID:        model.SeriesID(strings.TrimSpace(seg[0])),
			Symbol:    strings.TrimSpace(seg[1]),
			Timeframe: strings.TrimSpace(seg[2]),
		}
		if len(seg) == 4 {
			if !strings.EqualFold(strings.TrimSpace(seg[3]), "live") {
				log.Printf("[config] skipping series with unknown flag: %q", part)
				continue
			}
			s.Live = true
		}
		if s.ID == "" || s.Symbol == "" {
			log.Printf("[config] skipping series without id or symbol: %q", part)
			continue
		}
		out = append(out, s)
	}
	return out, checkSeries(out)
}

type seriesFile struct {
	Series []model.Series `yaml:"series"`
}

// LoadSeriesFile reads series definitions from a YAML file:
//
//	series:
//	  - id: "6003"
//	    symbol: AAPL
//	    timeframe: 5s
//	    live: true
func LoadSeriesFile(path string) ([]model.Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read series file: %w", err)
	}
	var f seriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse series file %s: %w", path, err)
	}
	return f.Series, checkSeries(f.Series)
}

func checkSeries(series []model.Series) error {
	if len(series) == 0 {
		return fmt.Errorf("no series configured")
	}
	seen := make(map[model.SeriesID]bool, len(series))
	for _, s := range series {
		if s.ID == "" {
			return fmt.Errorf("series without id")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate series id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// getOptional is getEnv for settings that an explicitly empty value turns off.
func getOptional(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		log.Printf("[config] invalid LOG_LEVEL=%q, using info", s)
		return slog.LevelInfo
	}
	return lvl
}
