// cmd/gateway serves the WebSocket and REST API from Redis, for running the
// client-facing side apart from srengine. Snapshots arrive over Redis
// PubSub; REST reads the latest snapshot keys and the fill journal.
//
// Config: the srengine env vars (REDIS_ADDR, SERIES, JOURNAL_PATH, ...) plus
//
//	GATEWAY_ADDR: listen address (default: ":8091")
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"srtrader/config"
	"srtrader/internal/execution"
	"srtrader/internal/gateway"
	"srtrader/internal/logger"
	"srtrader/internal/metrics"
	redisstore "srtrader/internal/store/redis"
)

var processStart = time.Now()

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[gateway] starting...")

	cfg := config.Load()
	logger.Init("gateway", cfg.LogLevel)
	listenAddr := getEnv("GATEWAY_ADDR", ":8091")

	series, err := cfg.Series()
	if err != nil {
		log.Fatalf("[gateway] series: %v", err)
	}

	rw, err := redisstore.New(redisstore.WriterConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Fatalf("[gateway] redis connection failed: %v", err)
	}
	defer rw.Close()

	var trades gateway.TradeSource
	if cfg.JournalPath != "" {
		if j, err := execution.NewJournal(cfg.JournalPath); err != nil {
			log.Printf("[gateway] WARNING: journal unavailable, /api/trades empty: %v", err)
		} else {
			defer j.Close()
			trades = j
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := gateway.NewHub(rw.Client())
	go hub.Router.Run(ctx)
	go hub.StartMetricsBroadcast(ctx, processStart, 2*time.Second)

	health := metrics.NewHealthStatus()
	health.SetSeries(len(series))
	health.StartLivenessChecker(ctx, rw.Client(), nil, 15*time.Second)

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, gateway.NewRemoteBackend(series, rw, trades), health, processStart)

	srv := &http.Server{Addr: listenAddr, Handler: mux}
	go func() {
		log.Printf("[gateway] ✅ listening on %s  (%d series, redis %s)", listenAddr, len(series), cfg.RedisAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[gateway] server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[gateway] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
