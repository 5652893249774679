//go:build !rp2040 && !rp2350 && !ir_hat_1

package provider

import (
	"sync"
	"sync/atomic"
	"time"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/x/shmring"

	"tinygo.org/x/drivers"
)

// Host builds get a fully fake registry: every resource class is backed by
// an in-memory double with simulation knobs, so services and devices can be
// exercised without hardware.

var _ core.ResourceRegistry = (*HostRegistry)(nil)

// NewResources mirrors the MCU constructor on the host. The registry is
// reachable through a type assertion on Resources.Reg when a test needs the
// simulation knobs.
func NewResources() core.Resources {
	return core.Resources{Reg: NewHostRegistry(), Delay: hostDelay{}}
}

// hostDelay sleeps instead of spinning; host settle precision is bounded by
// the scheduler, which the fakes do not care about.
type hostDelay struct{}

func (hostDelay) DelayUS(us uint32) { time.Sleep(time.Duration(us) * time.Microsecond) }

// ----------------------------- I²C (host) ------------------------------------

// HostI2C implements drivers.I2C for host-side tests. Without a Handler it
// records the last transaction and reads back zeros; a Handler turns it into
// a scripted chip emulation.
type HostI2C struct {
	mu      sync.Mutex
	Handler func(addr uint16, w, r []byte) error

	LastTx struct {
		Addr uint16
		W    []byte
		Rn   int
	}
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastTx.Addr = addr
	h.LastTx.W = append([]byte(nil), w...)
	h.LastTx.Rn = len(r)
	if h.Handler != nil {
		return h.Handler(addr, w, r)
	}
	for i := range r {
		r[i] = 0
	}
	return nil
}

func (h *HostI2C) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return h.Tx(uint16(addr), []byte{reg}, buf)
}

func (h *HostI2C) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	w := make([]byte, len(buf)+1)
	w[0] = reg
	copy(w[1:], buf)
	return h.Tx(uint16(addr), w, nil)
}

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements the GPIO handle and feeds any registered edge stream
// from Set, standing in for the pin interrupt.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	watch   *hostEdgeStream
}

func (p *FakePin) Number() int { return p.number }

func (p *FakePin) ConfigureInput(_ core.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	w := p.watch
	p.mu.Unlock()
	if w != nil {
		w.inject(level)
	}
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Toggle() { p.Set(!p.Get()) }

type hostPinHandle struct {
	p  *FakePin
	fn core.PinFunc
}

func (h hostPinHandle) Pin() int { return h.p.number }

func (h hostPinHandle) AsGPIO() core.GPIOHandle {
	if h.fn != core.FuncGPIOIn && h.fn != core.FuncGPIOOut {
		panic("pin not claimed for GPIO")
	}
	return h.p
}

func (h hostPinHandle) AsPWM() core.PWMHandle {
	if h.fn != core.FuncPWM {
		panic("pin not claimed for PWM")
	}
	return &hostPWM{pin: h.p.number}
}

// hostPWM stores the logical state; ramps complete immediately.
type hostPWM struct {
	mu      sync.Mutex
	pin     int
	freqHz  uint64
	top     uint16
	level   uint16
	enabled bool
}

func (p *hostPWM) Configure(freqHz uint64, top uint16) error {
	p.mu.Lock()
	p.freqHz, p.top = freqHz, top
	p.mu.Unlock()
	return nil
}

func (p *hostPWM) Set(level uint16) {
	p.mu.Lock()
	if p.top != 0 && level > p.top {
		level = p.top
	}
	p.level = level
	p.mu.Unlock()
}

func (p *hostPWM) Enable(on bool) {
	p.mu.Lock()
	p.enabled = on
	p.mu.Unlock()
}

func (p *hostPWM) Info() (int, rune, int) { return 0, 'A', p.pin }

func (p *hostPWM) Ramp(to uint16, _ uint32, _ uint16, _ core.PWMRampMode) bool {
	p.Set(to)
	return true
}

func (p *hostPWM) StopRamp() {}

// Level exposes the logical duty for assertions.
func (p *hostPWM) Level() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// ----------------------------- edge streams ----------------------------------

type hostEdgeStream struct {
	pin   int
	edge  core.Edge
	debMs int64

	levels chan bool
	outQ   chan core.EdgeEvent
	quit   chan struct{}

	lastLevel bool
	lastMs    int64
}

func (s *hostEdgeStream) Events() <-chan core.EdgeEvent { return s.outQ }

func (s *hostEdgeStream) Close() {
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
}

func (s *hostEdgeStream) inject(level bool) {
	select {
	case s.levels <- level:
	default:
	}
}

func (s *hostEdgeStream) run() {
	defer close(s.outQ)
	for {
		select {
		case <-s.quit:
			return
		case level := <-s.levels:
			now := time.Now().UnixMilli()
			if s.debMs > 0 && s.lastMs != 0 && now-s.lastMs < s.debMs {
				s.lastLevel = level
				continue
			}
			var e core.Edge
			switch {
			case !s.lastLevel && level:
				e = core.EdgeRising
			case s.lastLevel && !level:
				e = core.EdgeFalling
			}
			s.lastLevel = level
			s.lastMs = now
			if e == core.EdgeNone {
				continue
			}
			if s.edge != core.EdgeBoth && e != s.edge {
				continue
			}
			select {
			case s.outQ <- core.EdgeEvent{Pin: s.pin, Level: level, TSms: now}:
			default:
			}
		}
	}
}

// ----------------------------- ADC (host) ------------------------------------

// FakeADC is a scripted conversion source.
type FakeADC struct {
	mu     sync.Mutex
	value  uint16
	fn     func() (uint16, error)
	err    error
	starts int
}

func (a *FakeADC) SimulateValue(v uint16) {
	a.mu.Lock()
	a.value = v
	a.mu.Unlock()
}

// SimulateFunc computes the conversion at read time, eg. from the level of
// the select pins. It overrides SimulateValue while set; nil reverts.
func (a *FakeADC) SimulateFunc(f func() (uint16, error)) {
	a.mu.Lock()
	a.fn = f
	a.mu.Unlock()
}

func (a *FakeADC) SimulateError(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

func (a *FakeADC) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.starts++
	return nil
}

func (a *FakeADC) Ready() (bool, error) { return true, nil }

func (a *FakeADC) Read() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fn != nil {
		return a.fn()
	}
	return a.value, a.err
}

func (a *FakeADC) Stop() error { return nil }

// ----------------------------- serial (host) ---------------------------------

// HostSerial is an in-memory port: the device side works the SerialPort
// contract, the test side feeds RX and drains TX.
type HostSerial struct {
	rx *shmring.Ring // test -> device
	tx *shmring.Ring // device -> test

	mu       sync.Mutex
	lastBaud uint32
}

func NewHostSerial(size int) *HostSerial {
	return &HostSerial{rx: shmring.New(size), tx: shmring.New(size)}
}

func (s *HostSerial) TryRead(p []byte) int      { return s.rx.TryReadInto(p) }
func (s *HostSerial) TryWrite(p []byte) int     { return s.tx.TryWriteFrom(p) }
func (s *HostSerial) Readable() <-chan struct{} { return s.rx.Readable() }
func (s *HostSerial) Writable() <-chan struct{} { return s.tx.Writable() }

func (s *HostSerial) SetBaudRate(br uint32) error {
	s.mu.Lock()
	s.lastBaud = br
	s.mu.Unlock()
	return nil
}

func (s *HostSerial) SetFormat(databits, stopbits uint8, parity string) error { return nil }

// Feed queues bytes on the device's RX path.
func (s *HostSerial) Feed(p []byte) int { return s.rx.TryWriteFrom(p) }

// Drain collects bytes the device wrote.
func (s *HostSerial) Drain(p []byte) int { return s.tx.TryReadInto(p) }

// LastBaud reports the most recent SetBaudRate value.
func (s *HostSerial) LastBaud() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBaud
}

// ----------------------------- registry --------------------------------------

type hostPinOwner struct {
	devID string
	fn    core.PinFunc
}

type HostRegistry struct {
	mu sync.Mutex

	pins      map[int]*FakePin
	pinOwners map[int]hostPinOwner

	i2c map[core.ResourceID]*HostI2C

	serial       map[core.ResourceID]*HostSerial
	serialOwners map[core.ResourceID]string

	adcs      map[core.ResourceID]*FakeADC
	adcOwners map[core.ResourceID]string

	edgeSubs map[int]*hostEdgeStream

	dieMilliC atomic.Int32
}

// NewHostRegistry prewires the fixtures a board plan would provide: two
// inert I2C buses, two serial ports and four ADC inputs.
func NewHostRegistry() *HostRegistry {
	r := &HostRegistry{
		pins:         make(map[int]*FakePin),
		pinOwners:    make(map[int]hostPinOwner),
		i2c:          make(map[core.ResourceID]*HostI2C),
		serial:       make(map[core.ResourceID]*HostSerial),
		serialOwners: make(map[core.ResourceID]string),
		adcs:         make(map[core.ResourceID]*FakeADC),
		adcOwners:    make(map[core.ResourceID]string),
		edgeSubs:     make(map[int]*hostEdgeStream),
	}
	r.i2c["i2c0"] = &HostI2C{}
	r.i2c["i2c1"] = &HostI2C{}
	r.serial["uart0"] = NewHostSerial(512)
	r.serial["uart1"] = NewHostSerial(512)
	for _, id := range []core.ResourceID{"adc0", "adc1", "adc2", "adc3"} {
		r.adcs[id] = &FakeADC{value: 0x0800}
	}
	r.dieMilliC.Store(25_000)
	return r
}

// ---- simulation knobs ----

// Pin returns the stable fake for n, creating it on first use.
func (r *HostRegistry) Pin(n int) *FakePin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupPin(n)
}

func (r *HostRegistry) lookupPin(n int) *FakePin {
	p, ok := r.pins[n]
	if !ok {
		p = &FakePin{number: n}
		r.pins[n] = p
	}
	return p
}

// ADC returns the fake conversion source for id, or nil.
func (r *HostRegistry) ADC(id core.ResourceID) *FakeADC {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adcs[id]
}

// I2C returns the fake bus for id, or nil.
func (r *HostRegistry) I2C(id core.ResourceID) *HostI2C {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.i2c[id]
}

// Serial returns the fake port for id, or nil.
func (r *HostRegistry) Serial(id core.ResourceID) *HostSerial {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.serial[id]
}

// SimulateDieMilliC sets the value ReadOnDieMilliC reports.
func (r *HostRegistry) SimulateDieMilliC(v int32) { r.dieMilliC.Store(v) }

func (r *HostRegistry) ReadOnDieMilliC() int32 { return r.dieMilliC.Load() }

// ---- core.ResourceRegistry ----

func (r *HostRegistry) ClassOf(id core.ResourceID) (core.BusClass, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.i2c[id]; ok {
		return core.BusTransactional, true
	}
	if _, ok := r.serial[id]; ok {
		return core.BusStream, true
	}
	if _, ok := r.adcs[id]; ok {
		return core.BusSampled, true
	}
	return 0, false
}

func (r *HostRegistry) ClaimI2C(devID string, id core.ResourceID) (drivers.I2C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.i2c[id]
	if b == nil {
		return nil, errcode.UnknownBus
	}
	return b, nil
}

func (r *HostRegistry) ReleaseI2C(devID string, id core.ResourceID) {}

func (r *HostRegistry) ClaimSerial(devID string, id core.ResourceID) (core.SerialPort, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.serial[id]
	if p == nil {
		return nil, errcode.UnknownBus
	}
	if owner, taken := r.serialOwners[id]; taken && owner != devID {
		return nil, errcode.BusInUse
	}
	r.serialOwners[id] = devID
	return p, nil
}

func (r *HostRegistry) ReleaseSerial(devID string, id core.ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.serialOwners[id]; ok && owner == devID {
		delete(r.serialOwners, id)
	}
}

func (r *HostRegistry) ClaimADC(devID string, id core.ResourceID) (core.ADCHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.adcs[id]
	if a == nil {
		return nil, errcode.UnknownBus
	}
	if owner, taken := r.adcOwners[id]; taken && owner != devID {
		return nil, errcode.BusInUse
	}
	r.adcOwners[id] = devID
	return a, nil
}

func (r *HostRegistry) ReleaseADC(devID string, id core.ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.adcOwners[id]; ok && owner == devID {
		delete(r.adcOwners, id)
	}
}

func (r *HostRegistry) ClaimPin(devID string, n int, fn core.PinFunc) (core.PinHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 {
		return nil, errcode.UnknownPin
	}
	if owner, inUse := r.pinOwners[n]; inUse && owner.devID != devID {
		return nil, errcode.PinInUse
	}
	switch fn {
	case core.FuncGPIOIn, core.FuncGPIOOut, core.FuncPWM:
	default:
		return nil, errcode.Unsupported
	}
	r.pinOwners[n] = hostPinOwner{devID: devID, fn: fn}
	return hostPinHandle{p: r.lookupPin(n), fn: fn}, nil
}

func (r *HostRegistry) ReleasePin(devID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.pinOwners[n]; ok && owner.devID == devID {
		delete(r.pinOwners, n)
	}
}

func (r *HostRegistry) SubscribeGPIOEdges(devID string, pin int, edge core.Edge, debounce time.Duration, qlen int) (core.GPIOEdgeStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, claimed := r.pinOwners[pin]
	if !claimed || owner.devID != devID {
		return nil, errcode.UnknownPin
	}
	if owner.fn != core.FuncGPIOIn {
		return nil, errcode.Unsupported
	}
	if _, exists := r.edgeSubs[pin]; exists {
		return nil, errcode.Conflict
	}
	if qlen <= 0 {
		qlen = 8
	}

	p := r.lookupPin(pin)
	s := &hostEdgeStream{
		pin:       pin,
		edge:      edge,
		debMs:     int64(debounce / time.Millisecond),
		levels:    make(chan bool, 2*qlen),
		outQ:      make(chan core.EdgeEvent, qlen),
		quit:      make(chan struct{}),
		lastLevel: p.Get(),
	}

	p.mu.Lock()
	p.watch = s
	p.mu.Unlock()

	go s.run()
	r.edgeSubs[pin] = s
	return s, nil
}

func (r *HostRegistry) UnsubscribeGPIOEdges(devID string, pin int) {
	r.mu.Lock()
	s := r.edgeSubs[pin]
	if s != nil {
		delete(r.edgeSubs, pin)
		if p, ok := r.pins[pin]; ok {
			p.mu.Lock()
			p.watch = nil
			p.mu.Unlock()
		}
	}
	r.mu.Unlock()
	if s != nil {
		s.Close()
	}
}
