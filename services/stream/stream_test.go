// stream/stream_test.go
package stream

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/muxwire"
	"sensorcode-go/types"
)

func TestStream_ForwardsSweepsAsFrames(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("stream_test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.Topic{"stream", "state"})
	defer conn.Unsubscribe(stateSub)

	first := nextStatePayload(t, stateSub, 500*time.Millisecond)
	assertLevelStatus(t, first, "idle", "awaiting_config")

	// Inject a dialler that returns a net.Pipe; the remote end decodes frames.
	prevDial := UARTDial
	defer func() { UARTDial = prevDial }()
	frames := make(chan muxwire.Frame, 4)
	var remote io.ReadWriteCloser
	UARTDial = func(ctx context.Context, _ UARTConfig) (io.ReadWriteCloser, error) {
		lc, rc := net.Pipe()
		remote = rc
		go collectFrames(rc, frames)
		return lc, nil
	}

	cfg := Config{Transport: TransportConfig{
		Type: "uart",
		UART: &UARTConfig{ID: "uart0", Baud: 115200, TX: 0, RX: 1},
	}}
	conn.Publish(conn.NewMessage(bus.Topic{"config", "stream"}, cfg, false))

	up := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, up, "up", "link_established")

	sweepTopic := bus.T("hal", "cap", "sensor", "array", "ir", "value")

	// An empty sweep cannot be framed and must be skipped, not kill the link.
	conn.Publish(conn.NewMessage(sweepTopic, types.ArraySweep{Seq: 4}, true))

	want := []uint16{0x0101, 0x0202, 0x0303}
	conn.Publish(conn.NewMessage(sweepTopic, types.ArraySweep{
		Seq: 5, TSms: 1234, Samples: want,
	}, true))

	select {
	case f := <-frames:
		if f.Seq != 5 {
			t.Fatalf("frame seq: got %d, want 5", f.Seq)
		}
		if len(f.Samples) != len(want) {
			t.Fatalf("frame samples: got %d, want %d", len(f.Samples), len(want))
		}
		for i := range want {
			if f.Samples[i] != want[i] {
				t.Fatalf("sample %d: got %#04x, want %#04x", i, f.Samples[i], want[i])
			}
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for frame")
	}

	// Close the remote; the next write must surface as a degraded state.
	if remote != nil {
		_ = remote.Close()
	}
	conn.Publish(conn.NewMessage(sweepTopic, types.ArraySweep{
		Seq: 6, Samples: []uint16{1},
	}, true))

	degraded := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, degraded, "degraded", "link_lost_retrying")
}

func TestStream_UnknownTransportYieldsErrorState(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("stream_test_bad")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.Topic{"stream", "state"})
	defer conn.Unsubscribe(stateSub)

	_ = nextStatePayload(t, stateSub, 500*time.Millisecond) // initial awaiting_config

	// The decoded-JSON shape the config service publishes.
	cfg := map[string]any{"transport": map[string]any{"type": "bogus"}}
	conn.Publish(conn.NewMessage(bus.Topic{"config", "stream"}, cfg, false))

	errState := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, errState, "error", "transport_init_failed")
}

func TestStream_RegisteredTransport(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("stream_test_reg")

	lc, rc := net.Pipe()
	defer rc.Close()
	RegisterTransport("pipe_test", func(TransportConfig) (Transport, error) {
		return pipeTransport{c: lc}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.Topic{"stream", "state"})
	defer conn.Unsubscribe(stateSub)

	_ = nextStatePayload(t, stateSub, 500*time.Millisecond)

	cfg := map[string]any{"transport": map[string]any{"type": "pipe_test"}}
	conn.Publish(conn.NewMessage(bus.Topic{"config", "stream"}, cfg, false))

	up := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, up, "up", "link_established")
}

func TestDecodeConfig_MapPayload(t *testing.T) {
	m := map[string]any{
		"transport": map[string]any{
			"type": "uart",
			"uart": map[string]any{
				"id": "uart0", "baud": float64(115200),
				"tx_pin": float64(0), "rx_pin": float64(1),
			},
		},
	}
	cfg, err := decodeConfig(m)
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}
	if cfg.Transport.Type != "uart" {
		t.Fatalf("type: got %q", cfg.Transport.Type)
	}
	u := cfg.Transport.UART
	if u == nil || u.ID != "uart0" || u.Baud != 115200 || u.TX != 0 || u.RX != 1 {
		t.Fatalf("uart config: got %+v", u)
	}

	if _, err := decodeConfig(42); err == nil {
		t.Fatalf("expected error for unsupported payload type")
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

type pipeTransport struct{ c io.ReadWriteCloser }

func (p pipeTransport) Open(context.Context) (io.ReadWriteCloser, error) { return p.c, nil }
func (p pipeTransport) String() string                                   { return "pipe_test" }

// collectFrames drains the remote end through a muxwire scanner. It exits on
// read error.
func collectFrames(r io.Reader, out chan<- muxwire.Frame) {
	sc := muxwire.NewScanner()
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			sc.Push(buf[:n])
			for {
				f, ok := sc.Next()
				if !ok {
					break
				}
				out <- f
			}
		}
		if err != nil {
			return
		}
	}
}

func nextStatePayload(t *testing.T, sub *bus.Subscription, d time.Duration) map[string]any {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m := <-sub.Channel():
		p, ok := m.Payload.(map[string]any)
		if !ok {
			t.Fatalf("state payload type: got %T, want map[string]any", m.Payload)
		}
		return p
	case <-timer.C:
		t.Fatalf("timeout waiting for stream/state")
		return nil
	}
}

func assertLevelStatus(t *testing.T, payload map[string]any, wantLevel, wantStatus string) {
	t.Helper()
	gotLevel, _ := payload["level"].(string)
	gotStatus, _ := payload["status"].(string)
	if gotLevel != wantLevel || gotStatus != wantStatus {
		t.Fatalf("unexpected state: level=%q status=%q, want level=%q status=%q (payload=%v)",
			gotLevel, gotStatus, wantLevel, wantStatus, payload)
	}
}
