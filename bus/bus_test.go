package bus

import (
	"context"
	"sort"
	"testing"
	"time"
)

// ---- Helpers ----

func recv(t *testing.T, sub *Subscription) *Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("no message on %v", sub.Topic())
		return nil
	}
}

func recvString(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	m := recv(t, sub)
	if s, ok := m.Payload.(string); !ok || s != want {
		t.Fatalf("got payload %#v, want %q", m.Payload, want)
	}
}

func quiet(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case m := <-sub.Channel():
		t.Fatalf("unexpected message %#v on %v", m.Payload, sub.Topic())
	case <-time.After(60 * time.Millisecond):
	}
}

func drainStrings(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			s, ok := m.Payload.(string)
			if !ok {
				t.Fatalf("non-string payload %#v", m.Payload)
			}
			out = append(out, s)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		t.Fatalf("drained %d of %d messages: %v", len(out), n, out)
	}
	return out
}

func sortedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// ---- Topics ----

func TestTopicAppendAtEqual(t *testing.T) {
	base := T("hal", "cap", "env")
	full := base.Append("temperature", "mcu")

	if base.Len() != 3 || full.Len() != 5 {
		t.Fatalf("lengths %d/%d, want 3/5", base.Len(), full.Len())
	}
	if full.At(3) != "temperature" || full.At(9) != nil || full.At(-1) != nil {
		t.Fatalf("At misbehaves: %v %v %v", full.At(3), full.At(9), full.At(-1))
	}
	if !full.Equal(T("hal", "cap", "env", "temperature", "mcu")) {
		t.Fatalf("Equal rejects identical topics")
	}
	if full.Equal(base) || base.Equal(T("hal", "cap", 3)) {
		t.Fatalf("Equal accepts differing topics")
	}

	// Append must never write through into the base topic's storage.
	a := base.Append("a")
	b := base.Append("b")
	if a.At(3) != "a" || b.At(3) != "b" {
		t.Fatalf("Append aliased its base: %v / %v", a, b)
	}
}

func TestTokenMustBeComparable(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("T accepted a non-comparable token")
		}
	}()
	_ = T([]byte{1, 2, 3}) // slices cannot be trie keys
}

func TestIntTokens(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	byIndex := c.Subscribe(T("slot", 3))
	byString := c.Subscribe(T("slot", "3"))

	c.Publish(b.NewMessage(T("slot", 3), "third", false))
	recvString(t, byIndex, "third")
	quiet(t, byString) // int 3 and string "3" are distinct tokens
}

// ---- Pub/sub ----

func TestPubSubRoundTrip(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("config", "stream"))
	c.Publish(c.NewMessage(T("config", "stream"), "uart0", false))
	recvString(t, sub, "uart0")
}

func TestRetainedCatchUp(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")

	c.PublishRetained(T("hal", "cap", "env", "temperature", "mcu", "value"), "21.5")

	late := c.Subscribe(T("hal", "cap", "env", "temperature", "mcu", "value"))
	recvString(t, late, "21.5")
}

func TestRetainedReplaceAndClear(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	topic := T("hal", "cap", "io", "led", "status", "value")

	c.PublishRetained(topic, "off")
	c.PublishRetained(topic, "on") // replaces

	s1 := c.Subscribe(topic)
	recvString(t, s1, "on")
	quiet(t, s1)

	c.PublishRetained(topic, nil) // clears the slot

	s2 := c.Subscribe(topic)
	quiet(t, s2)
}

func TestQueueDropsOldestUnderPressure(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("burst"))
	for _, p := range []string{"m1", "m2", "m3"} {
		c.Publish(c.NewMessage(T("burst"), p, false))
	}

	// Queue length is 2 and nothing consumed: m1 was evicted.
	got := drainStrings(t, sub, 2)
	sortedEqual(t, got, []string{"m2", "m3"})
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("env", "pressure"))
	sub.Unsubscribe()

	c.Publish(c.NewMessage(T("env", "pressure"), "x", false))
	if m, ok := <-sub.Channel(); ok {
		t.Fatalf("message %#v after unsubscribe", m.Payload)
	}
}

func TestDisconnectClosesEverything(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	s1 := c.Subscribe(T("a"))
	s2 := c.Subscribe(T("b"))
	c.Disconnect()

	for _, s := range []*Subscription{s1, s2} {
		if _, ok := <-s.Channel(); ok {
			t.Fatal("subscription still open after disconnect")
		}
	}

	// The trie no longer routes to the dead subscriptions.
	c2 := b.NewConnection("again")
	c2.Publish(c2.NewMessage(T("a"), "fresh", false))
}

// ---- Wildcards ----

func TestSingleLevelWildcard(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	anyKind := c.Subscribe(T("hal", "cap", "+", "value"))
	anyTail := c.Subscribe(T("hal", "+", "+", "+"))
	miss := c.Subscribe(T("hal", "cap", "+", "status"))

	c.Publish(b.NewMessage(T("hal", "cap", "led", "value"), "on", false))
	recvString(t, anyKind, "on")
	recvString(t, anyTail, "on")
	quiet(t, miss)

	// + is exactly one level: a shorter topic does not match.
	c.Publish(b.NewMessage(T("hal", "cap", "value"), "short", false))
	quiet(t, anyKind)
}

func TestMultiLevelWildcard(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	all := c.Subscribe(T("#"))
	halAll := c.Subscribe(T("hal", "#"))
	deep := c.Subscribe(T("hal", "cap", "#"))

	// # also matches the empty remainder: hal/# receives hal.
	c.Publish(b.NewMessage(T("hal"), "p1", false))
	recvString(t, all, "p1")
	recvString(t, halAll, "p1")
	quiet(t, deep)

	c.Publish(b.NewMessage(T("hal", "cap", "io", "led"), "p2", false))
	recvString(t, all, "p2")
	recvString(t, halAll, "p2")
	recvString(t, deep, "p2")
}

func TestWildcardRetainedCatchUp(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.PublishRetained(T("hal"), "r0")
	c.PublishRetained(T("hal", "cap"), "r1")
	c.PublishRetained(T("hal", "cap", "led"), "r2")
	c.PublishRetained(T("hal", "status"), "r3")

	all := c.Subscribe(T("hal", "#"))
	sortedEqual(t, drainStrings(t, all, 4), []string{"r0", "r1", "r2", "r3"})

	oneDeep := c.Subscribe(T("hal", "+"))
	sortedEqual(t, drainStrings(t, oneDeep, 2), []string{"r1", "r3"})

	plusHash := c.Subscribe(T("hal", "+", "#"))
	sortedEqual(t, drainStrings(t, plusHash, 3), []string{"r1", "r2", "r3"})
}

func TestWildcardOverride(t *testing.T) {
	b := NewBus(8, "*", ">")
	c := b.NewConnection("test")

	star := c.Subscribe(T("env", "*"))
	rest := c.Subscribe(T(">"))
	literalPlus := c.Subscribe(T("env", "+"))

	c.Publish(b.NewMessage(T("env", "rh"), "40", false))
	recvString(t, star, "40")
	recvString(t, rest, "40")
	quiet(t, literalPlus)

	// With the defaults overridden, + routes as an ordinary token.
	c.Publish(b.NewMessage(T("env", "+"), "literal", false))
	recvString(t, literalPlus, "literal")
}

// ---- Request / reply ----

func TestRequestWaitRoundTrip(t *testing.T) {
	b := NewBus(8)
	client := b.NewConnection("client")
	server := b.NewConnection("server")

	control := T("hal", "cap", "sensor", "array", "ir", "control", "sweep")
	serve := server.Subscribe(control)
	defer serve.Unsubscribe()

	go func() {
		if m, ok := <-serve.Channel(); ok {
			if !m.CanReply() {
				return
			}
			server.Reply(m, "accepted", false)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := b.NewMessage(control, nil, false)
	reply, err := client.RequestWait(ctx, req)
	if err != nil {
		t.Fatalf("RequestWait: %v", err)
	}
	if s, ok := reply.Payload.(string); !ok || s != "accepted" {
		t.Fatalf("reply payload %#v", reply.Payload)
	}
	if !reply.Topic.Equal(req.ReplyTo) {
		t.Fatalf("reply arrived on %v, want %v", reply.Topic, req.ReplyTo)
	}
}

func TestRequestWaitTimeout(t *testing.T) {
	b := NewBus(8)
	client := b.NewConnection("client")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.RequestWait(ctx, b.NewMessage(T("nobody", "home"), nil, false))
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestRequestManualInbox(t *testing.T) {
	b := NewBus(8)
	client := b.NewConnection("client")
	server := b.NewConnection("server")

	control := T("hal", "cap", "io", "led", "status", "control", "set")
	serve := server.Subscribe(control)
	defer serve.Unsubscribe()

	req := b.NewMessage(control, "on", false)
	inbox := client.Request(req)
	defer inbox.Unsubscribe()

	go func() {
		if m, ok := <-serve.Channel(); ok {
			server.Reply(m, map[string]any{"ok": true}, false)
		}
	}()

	m := recv(t, inbox)
	rep, ok := m.Payload.(map[string]any)
	if !ok || rep["ok"] != true {
		t.Fatalf("reply payload %#v", m.Payload)
	}
}

func TestReplyWithoutInboxIsNoOp(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("plain"))
	c.Publish(c.NewMessage(T("plain"), "fire-and-forget", false))

	m := recv(t, sub)
	if m.CanReply() {
		t.Fatal("plain publish carries a reply topic")
	}
	c.Reply(m, "ignored", false) // must not panic or route anywhere
}

func TestInboxTopicsAreUnique(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("client")

	r1 := b.NewMessage(T("svc", "op"), nil, false)
	r2 := b.NewMessage(T("svc", "op"), nil, false)
	s1 := c.Request(r1)
	defer s1.Unsubscribe()
	s2 := c.Request(r2)
	defer s2.Unsubscribe()

	if r1.ReplyTo.Equal(r2.ReplyTo) {
		t.Fatalf("two requests share inbox %v", r1.ReplyTo)
	}
}
