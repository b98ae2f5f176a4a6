package srengine

import (
	"context"
	"errors"
	"log"
	"time"

	"srtrader/internal/execution"
	"srtrader/internal/model"
	"srtrader/internal/pipeline"
	"srtrader/internal/pivot"
)

// processLoop applies feed events to the pipeline in arrival order and hands
// snapshots to the fan-out bus. Accepted bars go to the recorder.
func (svc *Service) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-svc.eventCh:
			if !ok {
				return
			}
			svc.handle(ctx, ev)
		}
	}
}

func (svc *Service) handle(ctx context.Context, ev model.Event) {
	start := time.Now()
	snap, err := svc.proc.Process(ctx, ev)
	svc.prom.ProcessDur.Observe(time.Since(start).Seconds())
	if err != nil {
		svc.prom.IngestErrors.WithLabelValues(reason(err)).Inc()
		log.Printf("[srengine] %s %s rejected: %v", ev.Series, ev.Kind, err)
		return
	}

	switch ev.Kind {
	case model.KindDataPoint:
		svc.prom.BarsTotal.WithLabelValues(string(ev.Series)).Inc()
		svc.health.SetLastBarTime(time.Now())
		if svc.recorder != nil {
			select {
			case svc.barCh <- ev.Bar:
			default:
				log.Printf("[srengine] WARNING: recorder channel full, bar %s@%d not recorded",
					ev.Series, ev.Bar.TS.UnixMilli())
			}
		}
	case model.KindBatchComplete:
		svc.prom.BatchesTotal.WithLabelValues(string(ev.Series)).Inc()
	}
	svc.prom.SeriesBars.WithLabelValues(string(ev.Series)).Set(float64(svc.store.Len(ev.Series)))

	if snap == nil {
		return
	}
	select {
	case svc.snapCh <- *snap:
	case <-ctx.Done():
	}
}

// reason maps a processing error to its ingest_errors label.
func reason(err error) string {
	switch {
	case errors.Is(err, model.ErrMalformedBar):
		return "malformed"
	case errors.Is(err, model.ErrOutOfOrderBar):
		return "out_of_order"
	case errors.Is(err, model.ErrUnknownSeries):
		return "unknown_series"
	default:
		return "other"
	}
}

// observeLoop mirrors snapshot state into Prometheus gauges.
func (svc *Service) observeLoop(ctx context.Context, snaps <-chan pipeline.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			id := string(snap.Series.ID)
			svc.prom.Pivots.WithLabelValues(id, string(pivot.RoleSupport)).Set(float64(len(snap.Pivots.Supports)))
			svc.prom.Pivots.WithLabelValues(id, string(pivot.RoleResistance)).Set(float64(len(snap.Pivots.Resistances)))
			if snap.Position != nil {
				pnl := 0.0
				if snap.Position.State == execution.StateOpen {
					pnl = snap.Position.RunningPnL
				}
				svc.prom.RunningPnL.WithLabelValues(id).Set(pnl)
			}
			if latest, ok := snap.Latest(); ok && snap.Trigger == "bar" {
				svc.prom.BarLag.Set(snap.ProcessedAt.Sub(latest.TS).Seconds())
			}
		}
	}
}

// fillLoop persists fills to the journal and the Redis fill stream.
func (svc *Service) fillLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-svc.fillCh:
			if svc.journal != nil {
				if err := svc.journal.RecordFill(f); err != nil {
					log.Printf("[srengine] journal %s: %v", f.OrderID, err)
				}
			}
			if svc.redis != nil {
				wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
				if err := svc.redis.RecordFill(wctx, f); err != nil {
					log.Printf("[srengine] redis fill %s: %v", f.OrderID, err)
				}
				cancel()
			}
		}
	}
}

// saturationLoop samples channel fill levels.
func (svc *Service) saturationLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.prom.SetChannelSaturation("events", len(svc.eventCh), cap(svc.eventCh))
			svc.prom.SetChannelSaturation("snapshots", len(svc.snapCh), cap(svc.snapCh))
			svc.prom.SetChannelSaturation("bars", len(svc.barCh), cap(svc.barCh))
			for _, st := range svc.snaps.ChannelStats() {
				svc.prom.SetChannelSaturation("fanout:"+st.Name, st.Len, st.Cap)
			}
		}
	}
}
