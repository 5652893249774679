package serial_raw

import (
	"sync"
	"testing"
	"time"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/types"
	"sensorcode-go/x/shmring"
)

// ---- Fakes ----

// fakePort is a loopback-style port: tests inject RX bytes and inspect
// what the device wrote. The mutex guards against the pump goroutine.
type fakePort struct {
	mu       sync.Mutex
	rxData   []byte
	wrote    []byte
	readable chan struct{}
	writable chan struct{}
}

func newFakePort() *fakePort {
	return &fakePort{
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (p *fakePort) TryRead(buf []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(buf, p.rxData)
	p.rxData = p.rxData[n:]
	return n
}

func (p *fakePort) TryWrite(buf []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wrote = append(p.wrote, buf...)
	return len(buf)
}

func (p *fakePort) Readable() <-chan struct{} { return p.readable }
func (p *fakePort) Writable() <-chan struct{} { return p.writable }

func (p *fakePort) inject(b []byte) {
	p.mu.Lock()
	p.rxData = append(p.rxData, b...)
	p.mu.Unlock()
	select {
	case p.readable <- struct{}{}:
	default:
	}
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.wrote)
}

func (p *fakePort) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rxData)
}

// cfgPort adds the optional baud and format features on top of fakePort.
type cfgPort struct {
	*fakePort
	baud     uint32
	databits uint8
	stopbits uint8
	parity   string
	err      error
}

func (p *cfgPort) SetBaudRate(b uint32) error { p.baud = b; return p.err }

func (p *cfgPort) SetFormat(databits, stopbits uint8, parity string) error {
	p.databits, p.stopbits, p.parity = databits, stopbits, parity
	return p.err
}

type fakeEmitter struct{ events []core.Event }

func (e *fakeEmitter) Emit(ev core.Event) bool {
	e.events = append(e.events, ev)
	return true
}

func (e *fakeEmitter) findTag(t *testing.T, tag string) core.Event {
	t.Helper()
	for _, ev := range e.events {
		if ev.EventTag == tag {
			return ev
		}
	}
	t.Fatalf("no %q event among %d emitted", tag, len(e.events))
	return core.Event{}
}

func newDevice(port core.SerialPort) (*Device, *fakeEmitter) {
	em := &fakeEmitter{}
	d := &Device{
		id:     "aux-uart",
		addr:   core.CapAddr{Domain: "io", Kind: types.KindSerial, Name: "aux"},
		res:    core.Resources{Pub: em},
		port:   port,
		params: Params{Bus: "uart1", Domain: "io", Name: "aux"},
	}
	d.baud, _ = port.(core.SerialConfigurator)
	d.format, _ = port.(core.SerialFormatConfigurator)
	return d, em
}

func open(t *testing.T, d *Device, req types.SerialSessionOpen) types.SerialSessionOpened {
	t.Helper()
	res, err := d.Control(d.addr, "session_open", req)
	if err != nil {
		t.Fatalf("session_open: %v", err)
	}
	if !res.OK {
		t.Fatalf("session_open rejected: %s", res.Error)
	}
	em := d.res.Pub.(*fakeEmitter)
	opened, ok := em.findTag(t, "session_opened").Payload.(types.SerialSessionOpened)
	if !ok {
		t.Fatalf("session_opened payload has wrong type")
	}
	return opened
}

// ---- Session lifecycle ----

func TestSessionOpenAnnouncesRings(t *testing.T) {
	d, em := newDevice(newFakePort())
	defer d.Close()

	opened := open(t, d, types.SerialSessionOpen{RXSize: 64, TXSize: 64})
	if opened.SessionID == 0 {
		t.Fatalf("session id not assigned")
	}
	if shmring.Get(shmring.Handle(opened.RXHandle)) == nil {
		t.Fatalf("rx handle %d not registered", opened.RXHandle)
	}
	if shmring.Get(shmring.Handle(opened.TXHandle)) == nil {
		t.Fatalf("tx handle %d not registered", opened.TXHandle)
	}
	em.findTag(t, "link_up")
}

func TestSessionOpenConflict(t *testing.T) {
	d, _ := newDevice(newFakePort())
	defer d.Close()

	open(t, d, types.SerialSessionOpen{RXSize: 64, TXSize: 64})
	res, _ := d.Control(d.addr, "session_open", types.SerialSessionOpen{RXSize: 64, TXSize: 64})
	if res.OK || res.Error != errcode.Conflict {
		t.Fatalf("second open: got OK=%v err=%s, want conflict", res.OK, res.Error)
	}
}

func TestSessionOpenRejectsBadSizes(t *testing.T) {
	cases := []types.SerialSessionOpen{
		{RXSize: 100, TXSize: 64}, // not a power of two
		{RXSize: 64, TXSize: 100},
		{RXSize: 1, TXSize: 64}, // below minimum
	}
	for _, req := range cases {
		d, _ := newDevice(newFakePort())
		res, _ := d.Control(d.addr, "session_open", req)
		if res.OK || res.Error != errcode.InvalidParams {
			t.Errorf("open %+v: got OK=%v err=%s, want invalid_params", req, res.OK, res.Error)
		}
		d.Close()
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	d, em := newDevice(newFakePort())
	defer d.Close()

	res, _ := d.Control(d.addr, "session_close", nil)
	if !res.OK {
		t.Fatalf("close without session should be OK")
	}
	if len(em.events) != 0 {
		t.Fatalf("close without session emitted %d events", len(em.events))
	}

	open(t, d, types.SerialSessionOpen{RXSize: 64, TXSize: 64})
	res, _ = d.Control(d.addr, "session_close", nil)
	if !res.OK {
		t.Fatalf("close rejected")
	}
	em.findTag(t, "session_closed")
	if d.active != nil {
		t.Fatalf("session still active after close")
	}
}

func TestOpenFlushesStaleBytes(t *testing.T) {
	p := newFakePort()
	p.inject([]byte("old noise"))
	d, _ := newDevice(p)
	defer d.Close()

	opened := open(t, d, types.SerialSessionOpen{RXSize: 64, TXSize: 64})
	if p.pending() != 0 {
		t.Fatalf("%d stale bytes survived the open flush", p.pending())
	}
	rx := shmring.Get(shmring.Handle(opened.RXHandle))
	if rx.Available() != 0 {
		t.Fatalf("stale bytes leaked into the session ring")
	}
}

// ---- Pump ----

func TestPumpPortToClient(t *testing.T) {
	p := newFakePort()
	d, _ := newDevice(p)
	defer d.Close()

	opened := open(t, d, types.SerialSessionOpen{RXSize: 64, TXSize: 64})
	rx := shmring.Get(shmring.Handle(opened.RXHandle))

	p.inject([]byte("hello"))

	want := "hello"
	got := make([]byte, 0, len(want))
	buf := make([]byte, 16)
	deadline := time.After(time.Second)
	for len(got) < len(want) {
		if n := rx.TryReadInto(buf); n > 0 {
			got = append(got, buf[:n]...)
			continue
		}
		select {
		case <-rx.Readable():
		case <-deadline:
			t.Fatalf("rx ring stuck at %q", got)
		}
	}
	if string(got) != want {
		t.Fatalf("rx ring delivered %q, want %q", got, want)
	}
}

func TestPumpClientToPort(t *testing.T) {
	p := newFakePort()
	d, _ := newDevice(p)
	defer d.Close()

	opened := open(t, d, types.SerialSessionOpen{RXSize: 64, TXSize: 64})
	tx := shmring.Get(shmring.Handle(opened.TXHandle))

	if n := tx.TryWriteFrom([]byte("ping")); n != 4 {
		t.Fatalf("tx ring accepted %d bytes", n)
	}

	deadline := time.Now().Add(time.Second)
	for p.written() != "ping" {
		if time.Now().After(deadline) {
			t.Fatalf("port saw %q, want %q", p.written(), "ping")
		}
		time.Sleep(time.Millisecond)
	}
}

// ---- Port features ----

func TestSetBaudNeedsConfigurator(t *testing.T) {
	d, _ := newDevice(newFakePort())
	res, _ := d.Control(d.addr, "set_baud", types.SerialSetBaud{Baud: 19200})
	if res.OK || res.Error != errcode.Unsupported {
		t.Fatalf("set_baud on fixed port: got OK=%v err=%s", res.OK, res.Error)
	}
}

func TestSetBaudAppliesToPort(t *testing.T) {
	p := &cfgPort{fakePort: newFakePort()}
	d, _ := newDevice(p)
	res, _ := d.Control(d.addr, "set_baud", types.SerialSetBaud{Baud: 19200})
	if !res.OK {
		t.Fatalf("set_baud rejected: %s", res.Error)
	}
	if p.baud != 19200 {
		t.Fatalf("port baud = %d, want 19200", p.baud)
	}
}

func TestSetFormat(t *testing.T) {
	p := &cfgPort{fakePort: newFakePort()}
	d, _ := newDevice(p)

	res, _ := d.Control(d.addr, "set_format", types.SerialSetFormat{DataBits: 0, StopBits: 1})
	if res.OK || res.Error != errcode.InvalidParams {
		t.Fatalf("zero databits: got OK=%v err=%s", res.OK, res.Error)
	}

	res, _ = d.Control(d.addr, "set_format", types.SerialSetFormat{
		DataBits: 8, StopBits: 1, Parity: types.ParityEven,
	})
	if !res.OK {
		t.Fatalf("8E1 rejected: %s", res.Error)
	}
	if p.databits != 8 || p.stopbits != 1 || p.parity != "even" {
		t.Fatalf("port format = %d%s%d", p.databits, p.parity, p.stopbits)
	}
}

// ---- Size fallback ----

func TestFallbackSize(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, defaultRingSize},
		{1, defaultRingSize},
		{100, defaultRingSize}, // configured but not a power of two
		{256, 256},
	}
	for _, c := range cases {
		if got := fallbackSize(c.in); got != c.want {
			t.Errorf("fallbackSize(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
