package heartbeat

import (
	"context"
	"testing"
	"time"

	"sensorcode-go/bus"
)

func TestHeartbeat_TicksAndReconfigures(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("hb_test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &Service{}
	if err := svc.Start(ctx, conn); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub := conn.Subscribe(bus.Topic{"heartbeat", "tick"})
	defer conn.Unsubscribe(sub)

	// Shrink the interval so the test does not sit on the 1s default.
	conn.Publish(conn.NewMessage(bus.Topic{"config", "heartbeat"},
		map[string]any{"interval": 0.05}, false))

	first := nextTick(t, sub, time.Second)
	second := nextTick(t, sub, time.Second)

	if second.Count != first.Count+1 {
		t.Fatalf("counts not consecutive: %d then %d", first.Count, second.Count)
	}
	if second.TSms < first.TSms {
		t.Fatalf("timestamps went backwards: %d then %d", first.TSms, second.TSms)
	}
}

func nextTick(t *testing.T, sub *bus.Subscription, d time.Duration) Tick {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case m := <-sub.Channel():
		tk, ok := m.Payload.(Tick)
		if !ok {
			t.Fatalf("tick payload type: got %T, want Tick", m.Payload)
		}
		return tk
	case <-timer.C:
		t.Fatalf("timeout waiting for heartbeat/tick")
		return Tick{}
	}
}
