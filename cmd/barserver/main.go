// cmd/barserver is a demo bar feed.
// Speaks the same wire format as the market-data bridge so srengine can run
// without a broker connection.
//
// Every connection gets, per configured series, a historical batch followed
// by the batch-complete sentinel; live series then receive one new bar per
// BAR_INTERVAL_MS:
//
//	{"reqId":6003,"t":1709305200000,"o":"181.2","h":"181.9","l":"180.8","c":"181.5"}
//	{"reqId":6003,"t":null}
//
// Config (env vars):
//
//	BAR_SERVER_ADDR  listen address (default: ":8080")
//	SERIES           same format as srengine (default: config.DefaultSeries)
//	HISTORY_BARS     bars per historical batch (default: "120")
//	BAR_INTERVAL_MS  live bar interval milliseconds (default: "5000")
//	START_PRICE      first simulated price (default: "180")
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"srtrader/config"
	"srtrader/internal/marketdata/feed"
	"srtrader/internal/marketdata/sim"
	"srtrader/internal/model"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type server struct {
	series     []model.Series
	history    int
	interval   time.Duration
	startPrice float64
}

func (s *server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[barserver] upgrade error: %v", err)
		return
	}
	log.Printf("[barserver] client connected: %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		conn.Close()
		log.Printf("[barserver] client disconnected: %s", r.RemoteAddr)
	}()

	// Drain reads so close frames and dead peers are noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(ev model.Event) error {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, feed.Encode(ev))
	}

	now := time.Now().UTC()
	seed := now.UnixNano()
	walkers := make(map[model.SeriesID]*sim.Walker)
	next := make(map[model.SeriesID]time.Time)

	for i, def := range s.series {
		step, ok := def.BarDuration()
		if !ok {
			log.Printf("[barserver] series %s: unknown timeframe %q, skipped", def.ID, def.Timeframe)
			continue
		}
		wk := sim.NewWalker(def.ID, step, s.startPrice, seed+int64(i))
		end := now.Truncate(step)
		for _, b := range wk.History(s.history, end) {
			if err := send(model.DataPoint(b)); err != nil {
				return
			}
		}
		if err := send(model.BatchComplete(def.ID)); err != nil {
			return
		}
		if def.Live {
			walkers[def.ID] = wk
			next[def.ID] = end.Add(step)
		}
	}
	log.Printf("[barserver] %s: history sent, streaming %d live series", r.RemoteAddr, len(walkers))

	if len(walkers) == 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, def := range s.series {
				wk, ok := walkers[def.ID]
				if !ok {
					continue
				}
				step, _ := def.BarDuration()
				b := wk.Next(next[def.ID])
				next[def.ID] = next[def.ID].Add(step)
				if err := send(model.DataPoint(b)); err != nil {
					return
				}
			}
		}
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[barserver] starting demo bar server...")

	addr := envOrDefault("BAR_SERVER_ADDR", ":8080")
	series, err := config.ParseSeries(envOrDefault("SERIES", config.DefaultSeries))
	if err != nil {
		log.Fatalf("[barserver] series: %v", err)
	}

	s := &server{
		series:     series,
		history:    envIntOrDefault("HISTORY_BARS", 120),
		interval:   time.Duration(envIntOrDefault("BAR_INTERVAL_MS", 5000)) * time.Millisecond,
		startPrice: envFloatOrDefault("START_PRICE", 180),
	}
	for _, def := range series {
		log.Printf("[barserver] series %s %s live=%v", def.ID, def.Label(), def.Live)
	}

	http.HandleFunc("/", s.wsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"barserver"}`)
	})

	log.Printf("[barserver] ✅ listening on %s  (WebSocket: ws://localhost%s/)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[barserver] server error: %v", err)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloatOrDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}
