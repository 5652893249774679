package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/errcode"
	"sensorcode-go/types"

	"tinygo.org/x/drivers"
)

// ---- Fakes ----

type stubRegistry struct{}

func (stubRegistry) ClassOf(ResourceID) (BusClass, bool)              { return 0, false }
func (stubRegistry) ClaimI2C(string, ResourceID) (drivers.I2C, error) { return nil, errcode.UnknownBus }
func (stubRegistry) ReleaseI2C(string, ResourceID)                    {}
func (stubRegistry) ClaimSerial(string, ResourceID) (SerialPort, error) {
	return nil, errcode.UnknownBus
}
func (stubRegistry) ReleaseSerial(string, ResourceID) {}
func (stubRegistry) ClaimADC(string, ResourceID) (ADCHandle, error) {
	return nil, errcode.UnknownBus
}
func (stubRegistry) ReleaseADC(string, ResourceID) {}
func (stubRegistry) ClaimPin(string, int, PinFunc) (PinHandle, error) {
	return nil, errcode.UnknownPin
}
func (stubRegistry) ReleasePin(string, int) {}
func (stubRegistry) SubscribeGPIOEdges(string, int, Edge, time.Duration, int) (GPIOEdgeStream, error) {
	return nil, errcode.Unsupported
}
func (stubRegistry) UnsubscribeGPIOEdges(string, int) {}

type probeDev struct {
	id  string
	pub EventEmitter

	mu     sync.Mutex
	verbs  []string
	closed bool
}

func (d *probeDev) ID() string { return d.id }

func (d *probeDev) Capabilities() []CapabilitySpec {
	return []CapabilitySpec{{
		Domain: "sensor",
		Kind:   types.KindArray,
		Name:   "ir",
		Info:   types.Info{SchemaVersion: 1, Driver: "test_probe"},
	}}
}

func (d *probeDev) Init(ctx context.Context) error { return nil }

func (d *probeDev) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *probeDev) Control(_ CapAddr, verb string, _ any) (EnqueueResult, error) {
	d.mu.Lock()
	d.verbs = append(d.verbs, verb)
	d.mu.Unlock()
	if verb == "bad" {
		return EnqueueResult{OK: false, Error: errcode.InvalidParams}, nil
	}
	return EnqueueResult{OK: true}, nil
}

func (d *probeDev) verbCount(verb string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, v := range d.verbs {
		if v == verb {
			n++
		}
	}
	return n
}

var (
	probeMu   sync.Mutex
	lastProbe *probeDev
)

// probeAddr is where the probe device's capability lands on the bus.
var probeAddr = CapAddr{Domain: "sensor", Kind: types.KindArray, Name: "ir"}

type probeBuilder struct{}

func (probeBuilder) Build(_ context.Context, in BuilderInput) (Device, error) {
	d := &probeDev{id: in.ID, pub: in.Res.Pub}
	probeMu.Lock()
	lastProbe = d
	probeMu.Unlock()
	return d, nil
}

func init() { RegisterBuilder("test_probe", probeBuilder{}) }

// ---- Helpers ----

func startHAL(t *testing.T) (*bus.Bus, *bus.Connection, context.CancelFunc) {
	t.Helper()
	b := bus.NewBus(64)
	hc := b.NewConnection("hal")
	h := NewHAL(hc, Resources{Reg: stubRegistry{}})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return b, b.NewConnection("test"), cancel
}

func configure(t *testing.T, tc *bus.Connection) *probeDev {
	t.Helper()
	stateSub := tc.Subscribe(bus.T("hal", "state"))
	defer tc.Unsubscribe(stateSub)

	tc.Publish(tc.NewMessage(bus.T("config", "hal"), types.HALConfig{
		Devices: []types.HALDevice{{ID: "probe0", Type: "test_probe"}},
	}, false))

	deadline := time.After(time.Second)
	for {
		select {
		case m := <-stateSub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == "ready" {
				probeMu.Lock()
				d := lastProbe
				probeMu.Unlock()
				if d == nil {
					t.Fatal("builder did not run")
				}
				return d
			}
		case <-deadline:
			t.Fatal("HAL never reported ready")
		}
	}
}

func requestWait(t *testing.T, tc *bus.Connection, topic bus.Topic, payload any) *bus.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	rep, err := tc.RequestWait(ctx, tc.NewMessage(topic, payload, false))
	if err != nil {
		t.Fatalf("request %v: %v", topic, err)
	}
	return rep
}

// ---- Tests ----

func TestControlRejectedBeforeConfig(t *testing.T) {
	_, tc, cancel := startHAL(t)
	defer cancel()

	// The HAL subscribes asynchronously; retry until a reply lands.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		ctx, rcancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		rep, err := tc.RequestWait(ctx, tc.NewMessage(probeAddr.ctrlTopic("read"), nil, false))
		rcancel()
		if err != nil {
			continue
		}
		er, ok := rep.Payload.(types.ErrorReply)
		if !ok || er.Error != string(errcode.HALNotReady) {
			t.Fatalf("expected hal_not_ready, got %+v", rep.Payload)
		}
		return
	}
	t.Fatal("never received a reply")
}

func TestConfigPublishesInfoAndStatus(t *testing.T) {
	_, tc, cancel := startHAL(t)
	defer cancel()
	configure(t, tc)

	// Retained info/status must arrive on late subscription.
	infoSub := tc.Subscribe(probeAddr.infoTopic())
	defer tc.Unsubscribe(infoSub)
	select {
	case m := <-infoSub.Channel():
		info, ok := m.Payload.(types.Info)
		if !ok || info.Driver != "test_probe" {
			t.Fatalf("bad info payload: %+v", m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no retained capability info")
	}

	stSub := tc.Subscribe(probeAddr.statusTopic())
	defer tc.Unsubscribe(stSub)
	select {
	case m := <-stSub.Channel():
		st, ok := m.Payload.(types.CapabilityStatus)
		if !ok || st.Link != types.LinkDown {
			t.Fatalf("bad initial status: %+v", m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no retained capability status")
	}
}

func TestControlDispatchAndReplies(t *testing.T) {
	_, tc, cancel := startHAL(t)
	defer cancel()
	dev := configure(t, tc)

	rep := requestWait(t, tc, probeAddr.ctrlTopic("read"), nil)
	if ok, _ := rep.Payload.(types.OKReply); !ok.OK {
		t.Fatalf("expected OK reply, got %+v", rep.Payload)
	}
	if dev.verbCount("read") != 1 {
		t.Fatalf("device saw %d reads", dev.verbCount("read"))
	}

	rep = requestWait(t, tc, probeAddr.ctrlTopic("bad"), nil)
	if er, _ := rep.Payload.(types.ErrorReply); er.Error != string(errcode.InvalidParams) {
		t.Fatalf("expected invalid_params, got %+v", rep.Payload)
	}

	ghost := CapAddr{Domain: "sensor", Kind: types.KindArray, Name: "nosuch"}
	rep = requestWait(t, tc, ghost.ctrlTopic("read"), nil)
	if er, _ := rep.Payload.(types.ErrorReply); er.Error != string(errcode.UnknownCapability) {
		t.Fatalf("expected unknown_capability, got %+v", rep.Payload)
	}
}

func TestEventPublication(t *testing.T) {
	_, tc, cancel := startHAL(t)
	defer cancel()
	dev := configure(t, tc)

	valSub := tc.Subscribe(probeAddr.valueTopic())
	evSub := tc.Subscribe(probeAddr.eventTopic("pressed"))
	stSub := tc.Subscribe(probeAddr.statusTopic())
	defer tc.Unsubscribe(valSub)
	defer tc.Unsubscribe(evSub)
	defer tc.Unsubscribe(stSub)

	// Value: retained publish + status up.
	dev.pub.Emit(Event{Addr: probeAddr, Payload: types.ChannelSample{Channel: 3, Raw: 1024}})
	select {
	case m := <-valSub.Channel():
		cs, ok := m.Payload.(types.ChannelSample)
		if !ok || cs.Raw != 1024 {
			t.Fatalf("bad value payload: %+v", m.Payload)
		}
		if !m.Retained {
			t.Fatal("value must be retained")
		}
	case <-time.After(time.Second):
		t.Fatal("no value published")
	}

	waitLink := func(want types.Link) {
		t.Helper()
		deadline := time.After(time.Second)
		for {
			select {
			case m := <-stSub.Channel():
				if st, ok := m.Payload.(types.CapabilityStatus); ok && st.Link == want {
					return
				}
			case <-deadline:
				t.Fatalf("status %s never seen", want)
			}
		}
	}
	waitLink(types.LinkUp)

	// Tagged event: non-retained, still drives status up.
	dev.pub.Emit(Event{Addr: probeAddr, EventTag: "pressed"})
	select {
	case m := <-evSub.Channel():
		if m.Retained {
			t.Fatal("events must not be retained")
		}
	case <-time.After(time.Second):
		t.Fatal("no tagged event published")
	}

	// Error: degraded status only.
	dev.pub.Emit(Event{Addr: probeAddr, Err: "io_error"})
	waitLink(types.LinkDegraded)
}

func TestPollLifecycle(t *testing.T) {
	_, tc, cancel := startHAL(t)
	defer cancel()
	dev := configure(t, tc)

	rep := requestWait(t, tc, probeAddr.ctrlTopic("poll_start"),
		types.PollStart{Verb: "sweep", IntervalMs: 10})
	if ok, _ := rep.Payload.(types.OKReply); !ok.OK {
		t.Fatalf("poll_start rejected: %+v", rep.Payload)
	}

	deadline := time.Now().Add(2 * time.Second)
	for dev.verbCount("sweep") < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := dev.verbCount("sweep"); n < 3 {
		t.Fatalf("expected >=3 poll fires, got %d", n)
	}

	rep = requestWait(t, tc, probeAddr.ctrlTopic("poll_stop"),
		types.PollStop{Verb: "sweep"})
	if ok, _ := rep.Payload.(types.OKReply); !ok.OK {
		t.Fatalf("poll_stop rejected: %+v", rep.Payload)
	}

	// Allow in-flight fires to drain, then confirm the schedule is gone.
	time.Sleep(30 * time.Millisecond)
	before := dev.verbCount("sweep")
	time.Sleep(50 * time.Millisecond)
	if after := dev.verbCount("sweep"); after != before {
		t.Fatalf("poller still firing after stop: %d -> %d", before, after)
	}

	// Bad poll_start payloads are rejected.
	rep = requestWait(t, tc, probeAddr.ctrlTopic("poll_start"),
		types.PollStart{Verb: "", IntervalMs: 10})
	if er, _ := rep.Payload.(types.ErrorReply); er.Error != string(errcode.InvalidParams) {
		t.Fatalf("expected invalid_params, got %+v", rep.Payload)
	}
}

func TestDeclarativePollersFromConfig(t *testing.T) {
	_, tc, cancel := startHAL(t)
	defer cancel()

	stateSub := tc.Subscribe(bus.T("hal", "state"))
	defer tc.Unsubscribe(stateSub)

	tc.Publish(tc.NewMessage(bus.T("config", "hal"), types.HALConfig{
		Devices: []types.HALDevice{{ID: "probe1", Type: "test_probe"}},
		Pollers: []types.PollSpec{{
			Domain: "sensor", Kind: types.KindArray, Name: "ir",
			Verb: "sweep", IntervalMs: 10,
		}},
	}, false))

	deadline := time.After(time.Second)
	for ready := false; !ready; {
		select {
		case m := <-stateSub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == "ready" {
				ready = true
			}
		case <-deadline:
			t.Fatal("HAL never ready")
		}
	}

	probeMu.Lock()
	dev := lastProbe
	probeMu.Unlock()

	waitFires := time.Now().Add(2 * time.Second)
	for dev.verbCount("sweep") < 2 && time.Now().Before(waitFires) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := dev.verbCount("sweep"); n < 2 {
		t.Fatalf("declarative poller fired %d times", n)
	}
}
