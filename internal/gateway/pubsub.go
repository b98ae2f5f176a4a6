package gateway

import (
	"context"
	"log"
	"strings"
)

// SnapshotPattern matches the channels the snapshot publisher writes to.
const SnapshotPattern = "pub:sr:*"

// PubSubRouter relays snapshots published on Redis to the broadcaster. It
// lets the gateway run in a separate process from the engine.
type PubSubRouter struct {
	hub *Hub
}

// NewPubSubRouter creates a PubSubRouter backed by the given Hub.
func NewPubSubRouter(hub *Hub) *PubSubRouter {
	return &PubSubRouter{hub: hub}
}

// Run subscribes to SnapshotPattern and routes messages.
// Blocks until ctx is cancelled.
func (r *PubSubRouter) Run(ctx context.Context) {
	if r.hub.Rdb == nil {
		log.Println("[gateway] WARNING: no redis client, pubsub routing disabled")
		return
	}
	pubsub := r.hub.Rdb.PSubscribe(ctx, SnapshotPattern)
	defer pubsub.Close()

	log.Printf("[gateway] subscribed to %s", SnapshotPattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.hub.broadcast(routeChannel(msg.Channel), []byte(msg.Payload))
		}
	}
}

// routeChannel maps "pub:sr:6003" to the WS channel "sr:6003".
func routeChannel(redisChannel string) string {
	return ChannelPrefix + strings.TrimPrefix(redisChannel, "pub:sr:")
}
