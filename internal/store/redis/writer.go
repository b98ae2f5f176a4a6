package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"srtrader/internal/execution"
	"srtrader/internal/model"
	"srtrader/internal/pipeline"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Fill stream trimming: plenty for a session of paper trades
	fillsMaxLen      = 10000
	defaultLatestTTL = 30 * time.Minute

	// FillStream is the stream every paper fill is appended to.
	FillStream = "sr:fills"
)

// LatestKey is the key holding the last snapshot of a series.
func LatestKey(id model.SeriesID) string { return "sr:latest:" + string(id) }

// PubSubChannel is the channel snapshots of a series are published on.
func PubSubChannel(id model.SeriesID) string { return "pub:sr:" + string(id) }

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer publishes snapshots and paper fills to Redis. Every round trip runs
// through a circuit breaker so a dead Redis does not stall the pipeline.
type Writer struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// Breaker returns the circuit breaker guarding writes.
func (w *Writer) Breaker() *CircuitBreaker { return w.breaker }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{
		client:  client,
		breaker: NewCircuitBreaker(5, 10*time.Second),
	}, nil
}

// Run reads snapshots from snapCh and publishes them.
// Blocks until ctx is cancelled or snapCh is closed.
func (w *Writer) Run(ctx context.Context, snapCh <-chan pipeline.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapCh:
			if !ok {
				return
			}
			if err := w.PublishSnapshot(ctx, &snap); err != nil && err != ErrCircuitOpen {
				log.Printf("[redis] snapshot %s: %v", snap.Series.ID, err)
			}
		}
	}
}

// PublishSnapshot stores the snapshot as the series' latest and publishes it
// to real-time subscribers in one pipeline.
func (w *Writer) PublishSnapshot(ctx context.Context, snap *pipeline.Snapshot) error {
	data := string(snap.JSON())
	id := snap.Series.ID

	return w.breaker.Execute(func() error {
		pipe := w.client.Pipeline()
		pipe.Set(ctx, LatestKey(id), data, defaultLatestTTL)
		pipe.Publish(ctx, PubSubChannel(id), data)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// RecordFill appends a paper fill to the fill stream.
func (w *Writer) RecordFill(ctx context.Context, fill execution.Fill) error {
	data, err := json.Marshal(fill)
	if err != nil {
		return fmt.Errorf("marshal fill: %w", err)
	}
	return w.breaker.Execute(func() error {
		return w.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: FillStream,
			MaxLen: fillsMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"series": string(fill.Series),
				"data":   string(data),
			},
		}).Err()
	})
}

// LatestSnapshot reads back the last published snapshot of a series.
// Returns (nil, nil) when the key is absent or expired.
func (w *Writer) LatestSnapshot(ctx context.Context, id model.SeriesID) (*pipeline.Snapshot, error) {
	raw, err := w.client.Get(ctx, LatestKey(id)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis GET %s: %w", LatestKey(id), err)
	}
	var snap pipeline.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
