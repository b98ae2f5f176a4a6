// Package notification delivers paper-trading alerts (order placed or moved,
// fill, periodic summary) to external channels.
package notification

import (
	"context"
	"errors"
	"log"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Series  string     `json:"series,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi sends every alert to all backends and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Queue decouples alert delivery from the caller. Post never blocks: when the
// buffer is full the alert is dropped and logged.
type Queue struct {
	next    Notifier
	ch      chan Alert
	timeout time.Duration
}

// NewQueue wraps next with a buffered delivery queue.
func NewQueue(next Notifier, size int) *Queue {
	return &Queue{next: next, ch: make(chan Alert, size), timeout: 15 * time.Second}
}

// Post enqueues an alert. Returns false if it was dropped.
func (q *Queue) Post(alert Alert) bool {
	select {
	case q.ch <- alert:
		return true
	default:
		log.Printf("[notify] queue full, dropped %q", alert.Title)
		return false
	}
}

// Send implements Notifier by enqueueing.
func (q *Queue) Send(_ context.Context, alert Alert) error {
	q.Post(alert)
	return nil
}

// Run delivers queued alerts until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-q.ch:
			sendCtx, cancel := context.WithTimeout(ctx, q.timeout)
			if err := q.next.Send(sendCtx, a); err != nil {
				log.Printf("[notify] delivery failed for %q: %v", a.Title, err)
			}
			cancel()
		}
	}
}
