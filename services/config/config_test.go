package config

import (
	"context"
	"testing"
	"time"

	"sensorcode-go/bus"
)

func withLookup(t *testing.T, fn func(string) ([]byte, bool)) {
	t.Helper()
	old := EmbeddedConfigLookup
	EmbeddedConfigLookup = fn
	t.Cleanup(func() { EmbeddedConfigLookup = old })
}

// drainSections reads want retained config/<key> messages off a fresh
// subscription. Publish happens before the subscribe, so replay delivers
// everything without polling.
func drainSections(t *testing.T, conn *bus.Connection, want int) map[string]any {
	t.Helper()
	sub := conn.Subscribe(bus.Topic{configPrefix, "#"})
	defer conn.Unsubscribe(sub)

	got := map[string]any{}
	for len(got) < want {
		select {
		case m := <-sub.Channel():
			if len(m.Topic) != 2 {
				t.Fatalf("topic %#v, want %s/<key>", m.Topic, configPrefix)
			}
			key, ok := m.Topic[1].(string)
			if !ok {
				t.Fatalf("topic key type %T, want string", m.Topic[1])
			}
			got[key] = m.Payload
		case <-time.After(time.Second):
			t.Fatalf("got %d sections, want %d: %v", len(got), want, got)
		}
	}
	return got
}

func TestConfig_PublishEmbedded_RetainedPerKey(t *testing.T) {
	withLookup(t, func(device string) ([]byte, bool) {
		if device != "pico" {
			return nil, false
		}
		return []byte(`{
			"mode": "dev",
			"debug": true,
			"region": {"code": "eu"}
		}`), true
	})

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "pico")

	if err := NewConfigService().publishEmbedded(ctx, conn); err != nil {
		t.Fatalf("publishEmbedded: %v", err)
	}

	got := drainSections(t, conn, 3)
	if s, ok := got["mode"].(string); !ok || s != "dev" {
		t.Fatalf("mode = %#v, want \"dev\"", got["mode"])
	}
	if v, ok := got["debug"].(bool); !ok || !v {
		t.Fatalf("debug = %#v, want true", got["debug"])
	}
	region, ok := got["region"].(map[string]any)
	if !ok {
		t.Fatalf("region type = %T, want map[string]any", got["region"])
	}
	if code, _ := region["code"].(string); code != "eu" {
		t.Fatalf("region.code = %#v, want \"eu\"", region["code"])
	}
}

func TestConfig_StartPublishesInBackground(t *testing.T) {
	withLookup(t, func(string) ([]byte, bool) {
		return []byte(`{"heartbeat": {"interval": 9}}`), true
	})

	b := bus.NewBus(8)
	conn := b.NewConnection("test-start")
	sub := conn.Subscribe(bus.Topic{configPrefix, "heartbeat"})
	defer conn.Unsubscribe(sub)

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "any")
	NewConfigService().Start(ctx, conn)

	select {
	case m := <-sub.Channel():
		if !m.Retained {
			t.Fatal("config message not retained")
		}
	case <-time.After(time.Second):
		t.Fatal("no config/heartbeat after Start")
	}
}

func TestConfig_PublishEmbedded_Errors(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-errors")
	svc := NewConfigService()

	// Board id missing from the context.
	if err := svc.publishEmbedded(context.Background(), conn); err == nil {
		t.Fatal("missing board id accepted")
	}

	// No embedded config for the board.
	withLookup(t, func(string) ([]byte, bool) { return nil, false })
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "ghost")
	if err := svc.publishEmbedded(ctx, conn); err == nil {
		t.Fatal("unknown board accepted")
	}

	// Config that is valid JSON but not an object.
	withLookup(t, func(string) ([]byte, bool) { return []byte(`[1, 2]`), true })
	if err := svc.publishEmbedded(ctx, conn); err == nil {
		t.Fatal("non-object config accepted")
	}
}

func TestConfig_EmbeddedBoardsParse(t *testing.T) {
	for _, board := range []string{"pico_ir_proto_1", "pico_ir_i2c_1", "pi_ir_hat_1"} {
		raw, ok := EmbeddedConfigLookup(board)
		if !ok || len(raw) == 0 {
			t.Fatalf("%s: no embedded config", board)
		}

		b := bus.NewBus(8)
		conn := b.NewConnection("test-" + board)
		ctx := context.WithValue(context.Background(), CtxDeviceKey, board)
		if err := NewConfigService().publishEmbedded(ctx, conn); err != nil {
			t.Fatalf("%s: publishEmbedded: %v", board, err)
		}

		// Retained stream config must exist and name a transport type.
		sub := conn.Subscribe(bus.Topic{configPrefix, "stream"})
		select {
		case m := <-sub.Channel():
			obj, ok := m.Payload.(map[string]any)
			if !ok {
				t.Fatalf("%s: stream payload type %T", board, m.Payload)
			}
			tr, ok := obj["transport"].(map[string]any)
			if !ok {
				t.Fatalf("%s: missing transport object", board)
			}
			if typ, _ := tr["type"].(string); typ == "" {
				t.Fatalf("%s: missing transport type", board)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("%s: no retained config/stream", board)
		}
		conn.Unsubscribe(sub)
	}
}
