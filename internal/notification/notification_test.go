package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"srtrader/internal/execution"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_PostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertInfo, Title: "t", Message: "m", Series: "6003"}))
	assert.Equal(t, "INFO", got["level"])
	assert.Equal(t, "6003", got["series"])
	assert.NotEmpty(t, got["ts"])
}

func TestWebhook_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "t"})
	assert.ErrorContains(t, err, "502")
}

func TestTelegram_EscapesAndPrefixesSeries(t *testing.T) {
	var body map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiBase = srv.URL
	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertCritical, Title: "Filled", Message: "at 99.5", Series: "6003"}))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", body["chat_id"])
	assert.Contains(t, body["text"], `\[6003\] Filled`)
	assert.Contains(t, body["text"], `99\.5`)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\*c\.`, escapeMarkdown("a_b*c."))
	assert.Equal(t, "plain", escapeMarkdown("plain"))
}

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (r *recorder) Send(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func TestMulti_SendsToAllAndJoinsErrors(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("down")}
	err := Multi{ok, bad, NewLogNotifier()}.Send(context.Background(), Alert{Title: "x"})

	assert.ErrorContains(t, err, "down")
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, bad.count())
}

func TestQueue_DeliversAndDropsWhenFull(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec, 2)

	assert.True(t, q.Post(Alert{Title: "1"}))
	assert.True(t, q.Post(Alert{Title: "2"}))
	assert.False(t, q.Post(Alert{Title: "3"}), "buffer of 2 is full")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestAlertBuilders(t *testing.T) {
	a := OrderAlert(execution.Order{OrderID: "PAPER-1", Series: "6003", Strategy: "nearest_support", Price: 99.5, TakeProfit: 100.495, StopLoss: 97.51})
	assert.Equal(t, "Paper order placed", a.Title)
	assert.Equal(t, "6003", a.Series)
	assert.Contains(t, a.Message, "99.50")

	a = OrderAlert(execution.Order{OrderID: "PAPER-1", Series: "6003", Price: 98, Previous: 99.5, Update: true})
	assert.Equal(t, "Paper order moved", a.Title)
	assert.Contains(t, a.Message, "99.50 -> 98.00")

	a = FillAlert(execution.Fill{OrderID: "PAPER-1", Series: "6003", Price: 98, BarLow: 97.8})
	assert.Equal(t, AlertWarning, a.Level)
	assert.Contains(t, a.Message, "long @ 98.00")

	a = SummaryAlert([]execution.Position{
		{Series: "6002", State: execution.StateFlat},
		{Series: "6003", State: execution.StateOpen, OrderPrice: 98, RunningPnL: 1.25},
		{Series: "6004", State: execution.StatePending, OrderPrice: 50},
	}, 1)
	assert.Contains(t, a.Message, "6003 OPEN @ 98.00 pnl 1.25")
	assert.Contains(t, a.Message, "6004 PENDING @ 50.00")
	assert.Contains(t, a.Message, "fills: 1, open pnl: 1.25")
}
