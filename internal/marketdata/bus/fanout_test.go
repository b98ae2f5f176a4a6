package bus

import (
	"context"
	"testing"
	"time"

	"srtrader/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New[model.Event](10)
	out1 := fo.Subscribe("gateway")
	out2 := fo.Subscribe("redis")

	input := make(chan model.Event, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- model.BatchComplete("6000")

	for name, out := range map[string]<-chan model.Event{"out1": out1, "out2": out2} {
		select {
		case ev := <-out:
			if ev.Series != "6000" {
				t.Errorf("%s: expected series 6000, got %s", name, ev.Series)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: timed out waiting for event", name)
		}
	}
}

func TestFanOut_DropsForSlowSubscriber(t *testing.T) {
	fo := New[int](1)
	slow := fo.Subscribe("slow")

	dropped := make(chan string, 10)
	fo.OnDrop = func(name string) { dropped <- name }

	input := make(chan int)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- 1
	input <- 2

	select {
	case name := <-dropped:
		if name != "slow" {
			t.Errorf("expected drop for 'slow', got %q", name)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a drop")
	}

	if v := <-slow; v != 1 {
		t.Errorf("expected first value 1, got %d", v)
	}

	stats := fo.ChannelStats()
	if len(stats) != 1 || stats[0].Cap != 1 || stats[0].Name != "slow" {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestFanOut_ClosesOutputsOnInputClose(t *testing.T) {
	fo := New[int](1)
	out := fo.Subscribe("a")
	input := make(chan int)
	close(input)
	fo.Run(context.Background(), input)

	if _, ok := <-out; ok {
		t.Error("expected closed output")
	}
}
