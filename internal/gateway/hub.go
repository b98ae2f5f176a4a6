package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"srtrader/internal/model"
	"srtrader/internal/pipeline"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

// ChannelPrefix prefixes every series channel delivered to WS clients.
const ChannelPrefix = "sr:"

// SeriesChannel is the WS channel carrying snapshots of one series.
func SeriesChannel(id model.SeriesID) string { return ChannelPrefix + string(id) }

// Hub manages WebSocket clients and snapshot fan-out.
// Snapshots arrive either in-process (Run) or from Redis PubSub (Router);
// Broadcaster sequences them and delivers them to subscribed clients.
type Hub struct {
	Rdb *goredis.Client

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill
	replayBufs map[string]*ReplayBuffer

	// Processing-to-emit latency of snapshots
	Latency *LatencyTracker

	// Sub-components
	Router      *PubSubRouter
	Broadcaster *Broadcaster
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64 // per-channel seq for gap detection
}

// NewHub creates a new Hub. rdb may be nil when snapshots are only fed
// in-process.
func NewHub(rdb *goredis.Client) *Hub {
	h := &Hub{
		Rdb:         rdb,
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		Latency:     NewLatencyTracker(10000), // 10k sample ring buffer
	}
	h.Router = NewPubSubRouter(h)
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Run broadcasts snapshots from snapCh until ctx is cancelled or snapCh is
// closed.
func (h *Hub) Run(ctx context.Context, snapCh <-chan pipeline.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapCh:
			if !ok {
				return
			}
			h.broadcast(SeriesChannel(snap.Series.ID), snap.JSON())
		}
	}
}

func (h *Hub) broadcast(channel string, data []byte) {
	h.Broadcaster.Broadcast(channel, data)
}

// advance bumps the global and channel sequence numbers, records data as
// the channel's latest payload and returns the channel's replay buffer.
func (h *Hub) advance(channel string, data []byte, now time.Time) (seq, channelSeq int64, rb *ReplayBuffer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.channelSeqs[channel]++
	channelSeq = h.channelSeqs[channel]
	h.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq}

	rb, ok := h.replayBufs[channel]
	if !ok {
		rb = NewReplayBuffer(snapshotReplayDepth)
		h.replayBufs[channel] = rb
	}
	return h.seq, channelSeq, rb
}

// sendMatching queues msg for every client subscribed to channel (every
// client when channel is empty) and returns how many were too slow to take it.
func (h *Hub) sendMatching(channel string, msg []byte) (dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if channel != "" && !client.matchesChannel(channel) {
			continue
		}
		select {
		case client.send <- msg:
		default:
			dropped++
		}
	}
	return dropped
}

// HandleWSRequest registers an upgraded connection as a client.
// lastTS (RFC3339Nano) skips initial state not newer than it.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, lastTS string) {
	client := newClient(h, conn)

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	client.sendInitialState(lastTS)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// GetLatestAll returns snapshot of all latest channel data.
func (h *Hub) GetLatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// GetReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
// Used by the /api/missed REST endpoint for client gap backfill.
func (h *Hub) GetReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	result := make([][]byte, len(entries))
	for i, e := range entries {
		result[i] = e.Data
	}
	return result
}

// GetChannelSeq returns the current sequence number for a channel.
func (h *Hub) GetChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartMetricsBroadcast sends system metrics to all WS clients every interval.
func (h *Hub) StartMetricsBroadcast(ctx context.Context, start time.Time, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := CollectMetrics(start)
			m.Clients = h.ClientCount()
			if h.Latency != nil {
				m.LatencyP50, m.LatencyP95, m.LatencyP99 = h.Latency.Percentiles()
			}
			envelope, _ := json.Marshal(metricsEnvelope{Type: "metrics", Metrics: m})
			h.sendMatching("", envelope)
		}
	}
}
