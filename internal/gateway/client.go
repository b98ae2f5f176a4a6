package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed series channels; empty means everything.
	subMu sync.RWMutex
	subs  map[string]bool
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		subs: make(map[string]bool),
	}
}

func (c *Client) sendInitialState(lastTS string) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}

		envelope, _ := json.Marshal(map[string]interface{}{
			"channel":     channel,
			"data":        entry.Data,
			"ts":          entry.TS.Format(time.RFC3339Nano),
			"channel_seq": entry.Seq,
			"initial":     true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Coalesce queued messages into one frame, newline separated
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var req ClientMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			SendError(c, "", "invalid message: "+err.Error())
			continue
		}

		switch strings.ToUpper(req.Type) {
		case "SUBSCRIBE":
			if len(req.Series) == 0 {
				SendError(c, req.ReqID, "series is required")
				continue
			}
			c.subscribe(req.Series)
			SendJSON(c, AckResponse{Type: "SUBSCRIBED", ReqID: req.ReqID, Series: c.subscriptions()})

		case "UNSUBSCRIBE":
			c.unsubscribe(req.Series)
			SendJSON(c, AckResponse{Type: "UNSUBSCRIBED", ReqID: req.ReqID, Series: c.subscriptions()})

		case "PING":
			SendJSON(c, PongResponse{Type: "PONG", Ping: req.Ping, ServerTS: time.Now().UnixMilli()})

		default:
			SendError(c, req.ReqID, "unknown message type "+req.Type)
		}
	}
}

func (c *Client) subscribe(series []string) {
	c.subMu.Lock()
	for _, id := range series {
		c.subs[SeriesChannel(seriesID(id))] = true
	}
	c.subMu.Unlock()
	log.Printf("[gateway] client subscribed: %v", series)
}

func (c *Client) unsubscribe(series []string) {
	c.subMu.Lock()
	for _, id := range series {
		delete(c.subs, SeriesChannel(seriesID(id)))
	}
	c.subMu.Unlock()
}

// subscriptions returns the subscribed series ids.
func (c *Client) subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		out = append(out, strings.TrimPrefix(ch, ChannelPrefix))
	}
	return out
}

// matchesChannel reports whether the client should receive a channel.
// Clients without subscriptions receive every channel.
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.subs) == 0 {
		return true
	}
	return c.subs[channel]
}
