package srengine

import (
	"context"
	"log"
	"net/http"
	"time"

	"srtrader/internal/execution"
	"srtrader/internal/gateway"
	"srtrader/internal/metrics"
	"srtrader/internal/model"
	"srtrader/internal/pipeline"
)

// startHTTP launches the gateway (WS + REST) and the metrics server.
// An empty address disables the corresponding server.
func (svc *Service) startHTTP(ctx context.Context) {
	if svc.cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		gateway.RegisterRoutes(mux, svc.hub, svc, svc.health, svc.startedAt)
		go svc.hub.StartMetricsBroadcast(ctx, svc.startedAt, 2*time.Second)

		svc.httpSrv = &http.Server{Addr: svc.cfg.HTTPAddr, Handler: mux}
		go func() {
			log.Printf("[srengine] gateway listening on %s (/ws, /api/*, /healthz)", svc.cfg.HTTPAddr)
			if err := svc.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
				log.Printf("[srengine] gateway server error: %v", err)
			}
		}()
	}
	if svc.cfg.MetricsAddr != "" {
		svc.metricsSrv = metrics.NewServer(svc.cfg.MetricsAddr, svc.health)
		svc.metricsSrv.Start()
	}
}

// Series returns the configured series definitions.
func (svc *Service) Series() []model.Series {
	return svc.proc.Series()
}

// Current recomputes the snapshot of one series.
func (svc *Service) Current(ctx context.Context, id model.SeriesID) (*pipeline.Snapshot, error) {
	return svc.proc.Current(ctx, id)
}

// Reset clears the bars and position of one series.
func (svc *Service) Reset(id model.SeriesID) error {
	if err := svc.proc.Reset(id); err != nil {
		return err
	}
	svc.prom.SeriesBars.WithLabelValues(string(id)).Set(0)
	return nil
}

// Positions returns the paper position of every series that has one.
func (svc *Service) Positions() []execution.Position {
	return svc.paper.Positions()
}

// Trades returns journaled fills, newest first. Without a journal it falls
// back to the in-memory fills of this run.
func (svc *Service) Trades(limit int) ([]execution.TradeRecord, error) {
	if svc.journal != nil {
		return svc.journal.GetTrades(limit)
	}
	fills := svc.paper.GetFills()
	out := make([]execution.TradeRecord, 0, limit)
	for i := len(fills) - 1; i >= 0 && len(out) < limit; i-- {
		f := fills[i]
		out = append(out, execution.TradeRecord{
			ID:         int64(i + 1),
			OrderID:    f.OrderID,
			Series:     string(f.Series),
			Strategy:   f.Strategy,
			Price:      f.Price,
			BarLow:     f.BarLow,
			TakeProfit: f.TakeProfit,
			StopLoss:   f.StopLoss,
			PlacedAt:   f.PlacedAt.UTC().Format(time.RFC3339Nano),
			FilledAt:   f.FilledAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out, nil
}

var _ gateway.Backend = (*Service)(nil)
