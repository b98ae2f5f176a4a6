package gateway

import (
	"encoding/json"
	"strconv"
	"time"
)

// snapshotReplayDepth is how many envelopes per channel /api/missed can
// serve. Batch snapshots carry every bar of a series, so the depth stays small.
const snapshotReplayDepth = 200

// Broadcaster wraps payloads in sequenced envelopes and fans them out to
// subscribed clients:
//
//	{"channel":"sr:6003","data":{...},"ts":"...","seq":812,"channel_seq":97}
type Broadcaster struct {
	hub *Hub

	// OnSlowClient is called for every envelope dropped because a client's
	// send buffer was full.
	OnSlowClient func(channel string)
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Broadcast sequences data on channel, buffers it for backfill and sends it
// to every client subscribed to channel. Slow clients miss the envelope
// rather than block the caller.
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	now := time.Now().UTC()
	b.recordLatency(data, now)

	seq, channelSeq, rb := b.hub.advance(channel, data, now)
	env := appendEnvelope(make([]byte, 0, len(channel)+len(data)+160), channel, data, now, seq, channelSeq)
	rb.Push(channelSeq, env)

	dropped := b.hub.sendMatching(channel, env)
	if b.OnSlowClient != nil {
		for i := 0; i < dropped; i++ {
			b.OnSlowClient(channel)
		}
	}
}

func (b *Broadcaster) recordLatency(data []byte, now time.Time) {
	if b.hub.Latency == nil {
		return
	}
	var partial struct {
		TS time.Time `json:"ts"`
	}
	if json.Unmarshal(data, &partial) != nil || partial.TS.IsZero() {
		return
	}
	if ms := float64(now.Sub(partial.TS).Microseconds()) / 1000.0; ms >= 0 {
		b.hub.Latency.Record(ms)
	}
}

// appendEnvelope writes the envelope around an already encoded payload.
func appendEnvelope(buf []byte, channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf = append(buf, `{"channel":`...)
	buf = strconv.AppendQuote(buf, channel)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	return append(buf, '}')
}
