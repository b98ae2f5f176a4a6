package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"srtrader/config"
	"srtrader/internal/logger"
	"srtrader/internal/srengine"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	logger.Init("srengine", cfg.LogLevel)
	log.Printf("[srengine] feed: %s, targets: +%.2f%% / -%.2f%%", cfg.FeedURL, cfg.ProfitTarget*100, cfg.StopLoss*100)

	svc, err := srengine.New(cfg, nil)
	if err != nil {
		log.Fatalf("[srengine] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[srengine] fatal: %v", err)
	}
}
