// Package srengine wires the bar feed, the support/resistance pipeline, the
// paper engine and every sink (gateway, Redis, SQLite, alerts) into one
// long-running service.
package srengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"srtrader/config"
	"srtrader/internal/barstore"
	"srtrader/internal/execution"
	"srtrader/internal/gateway"
	"srtrader/internal/marketdata/bus"
	"srtrader/internal/marketdata/feed"
	"srtrader/internal/metrics"
	"srtrader/internal/model"
	"srtrader/internal/notification"
	"srtrader/internal/pipeline"
	redisstore "srtrader/internal/store/redis"
	sqlitestore "srtrader/internal/store/sqlite"
	"srtrader/internal/strategy"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

// Service is the top-level orchestrator of the engine.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg    *config.Config
	series []model.Series

	store *barstore.Store
	paper *execution.PaperEngine
	proc  *pipeline.Processor

	// Optional sinks; nil when not configured or unreachable.
	journal  *execution.Journal
	recorder *sqlitestore.Writer
	redis    *redisstore.Writer

	ingest *feed.Ingest
	snaps  *bus.FanOut[pipeline.Snapshot]
	hub    *gateway.Hub
	health *metrics.HealthStatus
	prom   *metrics.Metrics
	alerts *notification.Queue
	cron   *cron.Cron

	eventCh chan model.Event
	snapCh  chan pipeline.Snapshot
	barCh   chan model.Bar
	fillCh  chan execution.Fill

	httpSrv      *http.Server
	metricsSrv   *metrics.Server
	recorderDone chan struct{}
	startedAt    time.Time
}

// New creates a Service from cfg. Redis, the bar recorder and the journal
// are optional: an empty address/path disables them and a connection failure
// only logs a warning. reg receives the Prometheus metrics (nil = default).
func New(cfg *config.Config, reg prometheus.Registerer) (*Service, error) {
	series, err := cfg.Series()
	if err != nil {
		return nil, fmt.Errorf("series config: %w", err)
	}
	if len(series) == 0 {
		return nil, errors.New("no series configured")
	}

	ingest, err := feed.New(feed.Config{URL: cfg.FeedURL})
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:       cfg,
		series:    series,
		store:     barstore.New(),
		paper:     execution.NewPaperEngine(execution.Config{ProfitTarget: cfg.ProfitTarget, StopLoss: cfg.StopLoss}),
		ingest:    ingest,
		snaps:     bus.New[pipeline.Snapshot](256),
		health:    metrics.NewHealthStatus(),
		prom:      metrics.NewMetrics(reg),
		eventCh:   make(chan model.Event, 4096),
		snapCh:    make(chan pipeline.Snapshot, 1024),
		barCh:     make(chan model.Bar, 4096),
		fillCh:    make(chan execution.Fill, 256),
		startedAt: time.Now(),
	}
	svc.proc = pipeline.New(svc.store, strategy.NewNearestSupport(), svc.paper, series...)
	svc.proc.TradeAfterBatch = cfg.AwaitHistory
	svc.health.SetSeries(len(series))

	// ---- Redis ----
	if cfg.RedisAddr != "" {
		svc.redis, err = redisstore.New(redisstore.WriterConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Printf("[srengine] WARNING: redis unavailable: %v (continuing without snapshot publishing)", err)
			svc.redis = nil
		}
	}
	svc.hub = gateway.NewHub(svc.hubRedis())

	// ---- SQLite ----
	if cfg.SQLitePath != "" && cfg.RecordBars {
		mkdirFor(cfg.SQLitePath)
		svc.recorder, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
		if err != nil {
			log.Printf("[srengine] WARNING: bar recorder init failed: %v", err)
			svc.recorder = nil
		} else {
			svc.logRecorded()
		}
	}
	if cfg.JournalPath != "" {
		mkdirFor(cfg.JournalPath)
		svc.journal, err = execution.NewJournal(cfg.JournalPath)
		if err != nil {
			log.Printf("[srengine] WARNING: journal init failed: %v", err)
			svc.journal = nil
		}
	}

	svc.alerts = notification.NewQueue(buildNotifier(cfg), 128)
	svc.wireHooks()
	return svc, nil
}

func (svc *Service) hubRedis() *goredis.Client {
	if svc.redis == nil {
		return nil
	}
	return svc.redis.Client()
}

// logRecorded reports how far each series is already recorded. History
// re-sent by the feed overwrites those rows.
func (svc *Service) logRecorded() {
	for _, def := range svc.series {
		last, err := svc.recorder.LastTimestamp(def.ID)
		if err != nil {
			log.Printf("[srengine] recorder: series %s: %v", def.ID, err)
			continue
		}
		if !last.IsZero() {
			log.Printf("[srengine] recorder: series %s recorded through %s", def.ID, last.Format(time.RFC3339))
		}
	}
}

func mkdirFor(path string) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		os.MkdirAll(dir, 0o755)
	}
}

func buildNotifier(cfg *config.Config) notification.Notifier {
	backends := notification.Multi{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	return backends
}

// wireHooks connects component callbacks to metrics, alerts and sinks.
func (svc *Service) wireHooks() {
	svc.ingest.OnConnect = func() {
		svc.health.SetFeedConnected(true)
		svc.prom.SetFeedConnected(true)
	}
	svc.ingest.OnReconnect = func() {
		svc.health.SetFeedConnected(false)
		svc.prom.SetFeedConnected(false)
		svc.prom.FeedReconnects.Inc()
	}
	svc.ingest.OnDecodeError = func(raw []byte, err error) {
		svc.prom.IngestErrors.WithLabelValues("malformed").Inc()
		log.Printf("[srengine] dropped message %q: %v", truncate(raw, 120), err)
	}

	svc.paper.OnOrder = func(o execution.Order) {
		svc.prom.OrdersTotal.WithLabelValues(string(o.Series)).Inc()
		svc.alerts.Post(notification.OrderAlert(o))
	}
	svc.paper.OnFill = func(f execution.Fill) {
		svc.prom.FillsTotal.WithLabelValues(string(f.Series)).Inc()
		svc.alerts.Post(notification.FillAlert(f))
		select {
		case svc.fillCh <- f:
		default:
			log.Printf("[srengine] WARNING: fill channel full, %s not journaled", f.OrderID)
		}
	}

	svc.snaps.OnDrop = func(name string) {
		svc.prom.FanoutDropsTotal.WithLabelValues(name).Inc()
	}
	svc.hub.Broadcaster.OnSlowClient = func(string) {
		svc.prom.FanoutDropsTotal.WithLabelValues("ws_client").Inc()
	}

	if svc.redis != nil {
		svc.redis.Breaker().OnStateChange = func(from, to redisstore.State) {
			svc.prom.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				svc.prom.RedisCircuitBreakerTrips.Inc()
			}
			log.Printf("[srengine] redis circuit breaker %s -> %s", from, to)
		}
	}
	if svc.recorder != nil {
		svc.recorder.OnCommit = func(n int, took time.Duration) {
			svc.prom.SQLiteCommitDur.Observe(took.Seconds())
		}
	}
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	log.Println("[srengine] starting support/resistance engine...")

	// ---- Sinks ----
	go svc.hub.Run(ctx, svc.snaps.Subscribe("gateway"))
	go svc.observeLoop(ctx, svc.snaps.Subscribe("metrics"))
	if svc.redis != nil {
		go svc.redis.Run(ctx, svc.snaps.Subscribe("redis"))
	}
	if svc.recorder != nil {
		svc.recorderDone = make(chan struct{})
		go func() {
			defer close(svc.recorderDone)
			svc.recorder.Run(ctx, svc.barCh)
		}()
	}
	go svc.fillLoop(ctx)
	go svc.alerts.Run(ctx)
	go svc.snaps.Run(ctx, svc.snapCh)

	// ---- Pipeline ----
	go svc.processLoop(ctx)
	go func() {
		if err := svc.ingest.Start(ctx, svc.eventCh); err != nil {
			log.Printf("[srengine] feed stopped: %v", err)
		}
	}()

	// ---- Observability ----
	go svc.saturationLoop(ctx, 5*time.Second)
	svc.health.StartLivenessChecker(ctx, svc.hubRedis(), svc.sqlDB(), 15*time.Second)
	if err := svc.startCron(); err != nil {
		return err
	}
	svc.startHTTP(ctx)

	// ---- Startup banner ----
	log.Println("[srengine] ╔════════════════════════════════════════════════════════╗")
	log.Println("[srengine] ║  Support/Resistance Engine Active                     ║")
	log.Println("[srengine] ║                                                       ║")
	log.Println("[srengine] ║  [Feed] → [Pivots] → [Paper] → [WS/Redis/SQLite]      ║")
	log.Printf("[srengine] ║  series: %d, feed: %s", len(svc.series), svc.cfg.FeedURL)
	log.Println("[srengine] ╚════════════════════════════════════════════════════════╝")

	<-ctx.Done()

	svc.shutdown()
	return nil
}

func (svc *Service) sqlDB() *sql.DB {
	if svc.recorder != nil {
		return svc.recorder.DB()
	}
	if svc.journal != nil {
		return svc.journal.DB()
	}
	return nil
}

// startCron schedules the periodic paper-trading summary.
func (svc *Service) startCron() error {
	if svc.cfg.SummaryCron == "" {
		return nil
	}
	svc.cron = cron.New(cron.WithSeconds())
	if _, err := svc.cron.AddFunc(svc.cfg.SummaryCron, svc.sendSummary); err != nil {
		return fmt.Errorf("summary cron %q: %w", svc.cfg.SummaryCron, err)
	}
	svc.cron.Start()
	return nil
}

func (svc *Service) sendSummary() {
	svc.alerts.Post(svc.Summary())
}

// Summary builds the paper-trading summary alert.
func (svc *Service) Summary() notification.Alert {
	return notification.SummaryAlert(svc.paper.Positions(), len(svc.paper.GetFills()))
}

// shutdown stops schedulers and closes connections.
func (svc *Service) shutdown() {
	log.Println("[srengine] shutdown signal received...")

	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if svc.cron != nil {
		<-svc.cron.Stop().Done()
	}
	if svc.httpSrv != nil {
		svc.httpSrv.Shutdown(shutCtx)
	}
	if svc.metricsSrv != nil {
		svc.metricsSrv.Stop(shutCtx)
	}

	if svc.recorder != nil {
		// Run flushes its last batch on cancel.
		select {
		case <-svc.recorderDone:
		case <-shutCtx.Done():
		}
		svc.recorder.Close()
	}
	if svc.journal != nil {
		svc.journal.Close()
	}
	if svc.redis != nil {
		svc.redis.Close()
	}

	log.Println("[srengine] shutdown complete.")
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
