//go:build pico

// On-target exerciser for the message bus: the package tests rerun on real
// silicon, where TinyGo's scheduler and channel timings differ from the host.
// Solid LED means every check passed, slow blink means at least one failed.
//
//	tinygo flash -target=pico ./bus/cmd/selftest
package main

import (
	"context"
	"machine"
	"sort"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/types"
	"sensorcode-go/x/fmtx"
)

const (
	expectTimeout = 200 * time.Millisecond
	silentWindow  = 60 * time.Millisecond
)

var tSweep = bus.T("hal", "cap", "sensor", "array", "ir", "value")

// ---- Assertion helpers ----

func expect(sub *bus.Subscription, want any) bool {
	select {
	case m := <-sub.Channel():
		return m.Payload == want
	case <-time.After(expectTimeout):
		return false
	}
}

func silent(sub *bus.Subscription) bool {
	select {
	case <-sub.Channel():
		return false
	case <-time.After(silentWindow):
		return true
	}
}

// drain collects n string payloads and returns them sorted; retained fanout
// order is not defined.
func drain(sub *bus.Subscription, n int) ([]string, bool) {
	out := make([]string, 0, n)
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if s, ok := m.Payload.(string); ok {
				out = append(out, s)
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	sort.Strings(out)
	return out, len(out) == n
}

// ---- Checks ----

func testPubSub() bool {
	b := bus.NewBus(4)
	c := b.NewConnection("selftest")
	sub := c.Subscribe(bus.T("config", "stream"))

	c.Publish(c.NewMessage(bus.T("config", "stream"), "uart0", false))
	return expect(sub, "uart0")
}

// A retained struct payload must come back typed, fields intact, to a late
// subscriber. Interface boxing is the part worth proving on target.
func testRetainedTyped() bool {
	b := bus.NewBus(4)
	c := b.NewConnection("selftest")

	c.Publish(c.NewMessage(tSweep, types.ArraySweep{
		Seq:     7,
		TSms:    123,
		Samples: []uint16{0x0100, 0x0200, 0x0300},
	}, true))

	sub := c.Subscribe(tSweep)
	select {
	case m := <-sub.Channel():
		sw, ok := m.Payload.(types.ArraySweep)
		return ok && sw.Seq == 7 && len(sw.Samples) == 3 && sw.Samples[2] == 0x0300
	case <-time.After(expectTimeout):
		return false
	}
}

func testWildcardFanout() bool {
	b := bus.NewBus(16)
	c := b.NewConnection("selftest")

	kind := c.Subscribe(bus.T("hal", "cap", "io", "+", "value"))
	all := c.Subscribe(bus.T("hal", "#"))
	exact := c.Subscribe(bus.T("hal", "cap", "io", "led", "value"))
	env := c.Subscribe(bus.T("hal", "cap", "env", "+", "value"))

	c.Publish(c.NewMessage(bus.T("hal", "cap", "io", "led", "value"), "on", false))
	if !expect(kind, "on") || !expect(all, "on") || !expect(exact, "on") || !silent(env) {
		return false
	}

	c.Publish(c.NewMessage(bus.T("hal", "cap", "env", "temperature", "value"), "warm", false))
	if !expect(env, "warm") || !expect(all, "warm") {
		return false
	}
	return silent(kind) && silent(exact)
}

func testWildcardRetained() bool {
	b := bus.NewBus(32)
	c := b.NewConnection("selftest")

	c.Publish(c.NewMessage(bus.T("hal", "state"), "s0", true))
	c.Publish(c.NewMessage(bus.T("hal", "cap", "io"), "s1", true))
	c.Publish(c.NewMessage(bus.T("hal", "cap", "env"), "s2", true))

	sub := c.Subscribe(bus.T("hal", "#"))
	got, ok := drain(sub, 3)
	if !ok {
		return false
	}
	return got[0] == "s0" && got[1] == "s1" && got[2] == "s2"
}

func testRetainedClear() bool {
	b := bus.NewBus(8)
	c := b.NewConnection("selftest")

	c.Publish(c.NewMessage(bus.T("stream", "state"), "up", true))
	c.Publish(c.NewMessage(bus.T("stream", "state"), nil, true))

	sub := c.Subscribe(bus.T("stream", "state"))
	return silent(sub)
}

func testRequestReply() bool {
	b := bus.NewBus(8)
	ctrl := b.NewConnection("controller")
	dev := b.NewConnection("device")

	topic := bus.T("hal", "cap", "sensor", "array", "ir", "control", "sweep")
	reqs := dev.Subscribe(topic)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if m, ok := <-reqs.Channel(); ok && m.CanReply() {
			dev.Reply(m, types.OKReply{OK: true}, false)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	rep, err := ctrl.RequestWait(ctx, ctrl.NewMessage(topic, nil, false))
	dev.Unsubscribe(reqs)
	<-done
	if err != nil {
		return false
	}
	okr, ok := rep.Payload.(types.OKReply)
	return ok && okr.OK
}

func testRequestTimeout() bool {
	b := bus.NewBus(8)
	c := b.NewConnection("selftest")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.RequestWait(ctx, c.NewMessage(bus.T("hal", "cap", "nobody", "control", "read"), nil, false))
	return err != nil
}

// The manual Request path: the reply must land on the request's $inbox topic.
func testReplyInbox() bool {
	b := bus.NewBus(8)
	ctrl := b.NewConnection("controller")
	dev := b.NewConnection("device")

	topic := bus.T("hal", "cap", "io", "led", "control", "read")
	reqs := dev.Subscribe(topic)
	defer dev.Unsubscribe(reqs)

	req := ctrl.NewMessage(topic, nil, false)
	replies := ctrl.Request(req)
	defer ctrl.Unsubscribe(replies)
	if len(req.ReplyTo) == 0 {
		return false
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if m, ok := <-reqs.Channel(); ok {
			dev.Reply(m, types.LEDValue{On: true}, false)
		}
	}()

	select {
	case m := <-replies.Channel():
		<-done
		v, ok := m.Payload.(types.LEDValue)
		return ok && v.On && m.Topic.Equal(req.ReplyTo)
	case <-time.After(expectTimeout):
		return false
	}
}

func testTokenGuard() (ok bool) {
	defer func() { ok = recover() != nil }()
	_ = bus.T([]byte{1, 2, 3}) // non-comparable token must panic in T
	return false
}

// ---- Runner ----

func main() {
	// Give the USB CDC time to enumerate so the report shows up.
	time.Sleep(250 * time.Millisecond)

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.High() // running

	tests := []struct {
		name string
		fn   func() bool
	}{
		{"pub_sub", testPubSub},
		{"retained_typed", testRetainedTyped},
		{"wildcard_fanout", testWildcardFanout},
		{"wildcard_retained", testWildcardRetained},
		{"retained_clear", testRetainedClear},
		{"request_reply", testRequestReply},
		{"request_timeout", testRequestTimeout},
		{"reply_inbox", testReplyInbox},
		{"token_guard", testTokenGuard},
	}

	passed, failed := 0, 0
	println("== bus self-test ==")
	for _, tc := range tests {
		if tc.fn() {
			println(fmtx.Sprintf("[PASS] %s", tc.name))
			passed++
		} else {
			println(fmtx.Sprintf("[FAIL] %s", tc.name))
			failed++
		}
		// keep timings sane between checks
		time.Sleep(10 * time.Millisecond)
	}
	println(fmtx.Sprintf("== done: %d passed, %d failed ==", passed, failed))

	for {
		if failed == 0 {
			led.High()
			time.Sleep(2 * time.Second)
			continue
		}
		led.High()
		time.Sleep(250 * time.Millisecond)
		led.Low()
		time.Sleep(250 * time.Millisecond)
	}
}
