// Package feed is the WebSocket client for the market-data bridge.
// It decodes bar messages into model.Event values and delivers them in
// arrival order. Decode failures are reported and skipped; they never break
// the connection.
package feed

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"srtrader/internal/model"

	"github.com/gorilla/websocket"
)

// Config holds configuration for the feed client.
type Config struct {
	// URL of the bridge, e.g. "ws://localhost:8080/"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Ingest streams decoded events from the bridge.
type Ingest struct {
	cfg Config

	// Optional hooks.
	OnConnect     func()
	OnReconnect   func()
	OnDecodeError func(raw []byte, err error)
}

// New creates a new Ingest. Returns an error if the URL is unparseable or
// not a ws/wss URL.
func New(cfg Config) (*Ingest, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed url: unsupported scheme %q", u.Scheme)
	}
	return &Ingest{cfg: cfg}, nil
}

// Start connects to the bridge and streams events into out.
// Blocks until ctx is cancelled. Reconnects automatically on disconnect.
// Sends block rather than drop: a lost bar would corrupt a historical batch.
func (ing *Ingest) Start(ctx context.Context, out chan<- model.Event) error {
	delay := ing.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := ing.runOnce(ctx, out)
		if err == nil {
			return nil
		}
		if connected {
			delay = ing.cfg.ReconnectDelay
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel. connected reports whether the dial succeeded.
func (ing *Ingest) runOnce(ctx context.Context, out chan<- model.Event) (connected bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", ing.cfg.URL)
	if ing.OnConnect != nil {
		ing.OnConnect()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return true, nil
			default:
			}
			return true, err
		}

		ev, err := Decode(raw)
		if err != nil {
			if ing.OnDecodeError != nil {
				ing.OnDecodeError(raw, err)
			} else {
				log.Printf("[feed] decode error: %v (raw: %s)", err, raw)
			}
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return true, nil
		}
	}
}
