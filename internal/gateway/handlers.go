package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"srtrader/internal/execution"
	"srtrader/internal/model"
	"srtrader/internal/pipeline"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Backend is the engine state the REST endpoints read.
type Backend interface {
	Series() []model.Series
	Current(ctx context.Context, id model.SeriesID) (*pipeline.Snapshot, error)
	Reset(id model.SeriesID) error
	Positions() []execution.Position
	Trades(limit int) ([]execution.TradeRecord, error)
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// RegisterRoutes registers all HTTP routes on the provided mux.
// health serves /healthz; nil skips it.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, backend Backend, health http.Handler, processStart time.Time) {
	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		hub.HandleWSRequest(conn, r.URL.Query().Get("last_ts"))
	})

	// REST: configured series with their channel seq
	mux.HandleFunc("/api/series", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		defs := backend.Series()
		out := make([]SeriesInfo, len(defs))
		for i, s := range defs {
			ch := SeriesChannel(s.ID)
			out[i] = SeriesInfo{Series: s, Channel: ch, Seq: hub.GetChannelSeq(ch)}
		}
		writeJSON(w, http.StatusOK, out)
	})

	// REST: GET /api/series/{id} current snapshot, POST /api/series/{id}/reset
	mux.HandleFunc("/api/series/", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/series/"), "/")
		id, action, _ := strings.Cut(rest, "/")
		if id == "" {
			writeError(w, http.StatusNotFound, "series id required")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			snap, err := backend.Current(r.Context(), model.SeriesID(id))
			if err != nil {
				writeError(w, statusOf(err), err.Error())
				return
			}
			if n, err := strconv.Atoi(r.URL.Query().Get("bars")); err == nil && n >= 0 && n < len(snap.Bars) {
				snap.Bars = snap.Bars[len(snap.Bars)-n:]
			}
			writeJSON(w, http.StatusOK, snap)

		case action == "reset" && r.Method == http.MethodPost:
			if err := backend.Reset(model.SeriesID(id)); err != nil {
				writeError(w, statusOf(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

		default:
			writeError(w, http.StatusMethodNotAllowed, "unsupported "+r.Method+" "+r.URL.Path)
		}
	})

	// REST: paper positions of every live series
	mux.HandleFunc("/api/positions", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, backend.Positions())
	})

	// REST: journaled fills, newest first
	mux.HandleFunc("/api/trades", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		limit := 50
		if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
		trades, err := backend.Trades(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, trades)
	})

	// REST: latest envelope payload per channel
	mux.HandleFunc("/api/latest", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, hub.GetLatestAll())
	})

	// REST: gap backfill, /api/missed?channel=sr:6003&from=5&to=9
	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		q := r.URL.Query()
		channel := q.Get("channel")
		from, errFrom := strconv.ParseInt(q.Get("from"), 10, 64)
		to, errTo := strconv.ParseInt(q.Get("to"), 10, 64)
		if channel == "" || errFrom != nil || errTo != nil || from > to {
			writeError(w, http.StatusBadRequest, "channel, from and to are required")
			return
		}
		envelopes := hub.GetReplayRange(channel, from, to)
		out := make([]json.RawMessage, len(envelopes))
		for i, e := range envelopes {
			out[i] = e
		}
		writeJSON(w, http.StatusOK, out)
	})

	// REST: process metrics snapshot
	mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		m := CollectMetrics(processStart)
		m.Clients = hub.ClientCount()
		m.LatencyP50, m.LatencyP95, m.LatencyP99 = hub.Latency.Percentiles()
		writeJSON(w, http.StatusOK, m)
	})

	if health != nil {
		mux.Handle("/healthz", health)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrUnknownSeries), errors.Is(err, ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, ErrReadOnly):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
