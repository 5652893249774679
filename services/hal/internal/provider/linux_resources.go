//go:build linux && ir_hat_1

package provider

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/services/hal/internal/provider/boards"
	"sensorcode-go/services/hal/internal/provider/setups"
)

// Raspberry Pi builds drive GPIO through the /dev/gpiomem map and I²C
// through the kernel bus devices. There is no on-die ADC and no claimable
// UART on this board, so those classes report accordingly.

var _ core.ResourceRegistry = (*linuxRegistry)(nil)

// NewResources builds the Pi registry from the selected plan. A failure
// here means the process cannot reach its hardware, which is fatal.
func NewResources() core.Resources {
	reg, err := NewLinuxRegistry(SelectedPlan)
	if err != nil {
		panic(err)
	}
	return core.Resources{Reg: reg, Delay: linuxDelay{}}
}

// linuxDelay sleeps; settle times on this platform ride on the scheduler.
type linuxDelay struct{}

func (linuxDelay) DelayUS(us uint32) { time.Sleep(time.Duration(us) * time.Microsecond) }

// ----------------------------- I²C (kernel) ----------------------------------

// linuxI2C adapts a periph bus to the drivers.I2C surface, one transaction
// at a time per bus.
type linuxI2C struct {
	mu  sync.Mutex
	bus i2c.BusCloser
}

func (b *linuxI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.Tx(addr, w, r)
}

func (b *linuxI2C) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), []byte{reg}, buf)
}

func (b *linuxI2C) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	w := make([]byte, len(buf)+1)
	w[0] = reg
	copy(w[1:], buf)
	return b.Tx(uint16(addr), w, nil)
}

// ----------------------------- GPIO (gpiomem) --------------------------------

// linuxGPIO drives one BCM pin through the shared memory map. go-rpio
// serialises register access internally.
type linuxGPIO struct {
	pin rpio.Pin
}

func (g *linuxGPIO) Number() int { return int(g.pin) }

func (g *linuxGPIO) ConfigureInput(pull core.Pull) error {
	g.pin.Input()
	switch pull {
	case core.PullUp:
		g.pin.PullUp()
	case core.PullDown:
		g.pin.PullDown()
	default:
		g.pin.PullOff()
	}
	return nil
}

func (g *linuxGPIO) ConfigureOutput(initial bool) error {
	g.pin.Output()
	g.Set(initial)
	return nil
}

func (g *linuxGPIO) Set(level bool) {
	if level {
		g.pin.High()
	} else {
		g.pin.Low()
	}
}

func (g *linuxGPIO) Get() bool { return g.pin.Read() == rpio.High }

func (g *linuxGPIO) Toggle() { g.pin.Toggle() }

type linuxPinHandle struct {
	g  *linuxGPIO
	fn core.PinFunc
}

func (h linuxPinHandle) Pin() int { return int(h.g.pin) }

func (h linuxPinHandle) AsGPIO() core.GPIOHandle {
	if h.fn != core.FuncGPIOIn && h.fn != core.FuncGPIOOut {
		panic("pin not claimed for GPIO")
	}
	return h.g
}

func (h linuxPinHandle) AsPWM() core.PWMHandle {
	panic("pwm not claimable on this platform")
}

// ----------------------------- edge streams ----------------------------------

// linuxEdgeStream polls the pin's edge-detect latch. go-rpio exposes the
// event status register but no interrupt fd, so a short tick is the only
// wakeup we have.
type linuxEdgeStream struct {
	pin   int
	rp    rpio.Pin
	edge  core.Edge
	debMs int64

	outQ chan core.EdgeEvent
	quit chan struct{}

	lastMs int64
}

const edgePollInterval = 5 * time.Millisecond

func (s *linuxEdgeStream) Events() <-chan core.EdgeEvent { return s.outQ }

func (s *linuxEdgeStream) Close() {
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
}

func (s *linuxEdgeStream) run() {
	defer close(s.outQ)
	t := time.NewTicker(edgePollInterval)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			if !s.rp.EdgeDetected() {
				continue
			}
			now := time.Now().UnixMilli()
			if s.debMs > 0 && s.lastMs != 0 && now-s.lastMs < s.debMs {
				continue
			}
			s.lastMs = now
			// The latch does not say which edge fired; classify from the
			// level sampled just after.
			level := s.rp.Read() == rpio.High
			e := core.EdgeFalling
			if level {
				e = core.EdgeRising
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

// ----------------------------- registry --------------------------------------

type linuxPinOwner struct {
	devID string
	fn    core.PinFunc
}

type linuxRegistry struct {
	mu sync.Mutex

	i2c       map[core.ResourceID]*linuxI2C
	pinOwners map[int]linuxPinOwner
	edgeSubs  map[int]*linuxEdgeStream
}

// NewLinuxRegistry maps the board plan onto the gpio memory map and the
// kernel I²C buses.
func NewLinuxRegistry(plan setups.ResourcePlan) (*linuxRegistry, error) {
	if len(plan.UART) > 0 || len(plan.ADC) > 0 {
		return nil, errors.New("plan requests uart/adc resources this platform does not provide")
	}
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "opening gpio memory map")
	}
	if _, err := host.Init(); err != nil {
		rpio.Close()
		return nil, errors.Wrap(err, "initialising periph host drivers")
	}

	r := &linuxRegistry{
		i2c:       make(map[core.ResourceID]*linuxI2C),
		pinOwners: make(map[int]linuxPinOwner),
		edgeSubs:  make(map[int]*linuxEdgeStream),
	}
	for _, p := range plan.I2C {
		bus, err := i2creg.Open(kernelBusName(p.ID))
		if err != nil {
			r.Close()
			return nil, errors.Wrapf(err, "opening i2c bus %q", p.ID)
		}
		if p.Hz > 0 {
			// Bus speed is fixed by the device tree on the Pi; best-effort.
			_ = bus.SetSpeed(physic.Frequency(p.Hz) * physic.Hertz)
		}
		r.i2c[core.ResourceID(p.ID)] = &linuxI2C{bus: bus}
	}
	return r, nil
}

// kernelBusName maps plan IDs onto kernel device names ("i2c1" -> "1").
func kernelBusName(id string) string { return strings.TrimPrefix(id, "i2c") }

// Close releases kernel resources. The firmware process holds the registry
// for its lifetime; this is for tooling and tests.
func (r *linuxRegistry) Close() {
	r.mu.Lock()
	subs := make([]*linuxEdgeStream, 0, len(r.edgeSubs))
	for pin, s := range r.edgeSubs {
		rpio.Pin(pin).Detect(rpio.NoEdge)
		subs = append(subs, s)
		delete(r.edgeSubs, pin)
	}
	buses := make([]*linuxI2C, 0, len(r.i2c))
	for id, b := range r.i2c {
		buses = append(buses, b)
		delete(r.i2c, id)
	}
	r.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	for _, b := range buses {
		b.bus.Close()
	}
	rpio.Close()
}

// ---- core.ResourceRegistry ----

func (r *linuxRegistry) ClassOf(id core.ResourceID) (core.BusClass, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.i2c[id]; ok {
		return core.BusTransactional, true
	}
	return 0, false
}

func (r *linuxRegistry) ClaimI2C(devID string, id core.ResourceID) (drivers.I2C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.i2c[id]
	if b == nil {
		return nil, errcode.UnknownBus
	}
	return b, nil
}

func (r *linuxRegistry) ReleaseI2C(devID string, id core.ResourceID) {}

// ClaimSerial always fails: the Pi's console UART stays with the kernel
// and the hat routes no other port.
func (r *linuxRegistry) ClaimSerial(devID string, id core.ResourceID) (core.SerialPort, error) {
	return nil, errcode.Unsupported
}

func (r *linuxRegistry) ReleaseSerial(devID string, id core.ResourceID) {}

// ClaimADC always fails: no on-die converter, analog paths go through an
// ads1115 on I²C.
func (r *linuxRegistry) ClaimADC(devID string, id core.ResourceID) (core.ADCHandle, error) {
	return nil, errcode.UnknownBus
}

func (r *linuxRegistry) ReleaseADC(devID string, id core.ResourceID) {}

func (r *linuxRegistry) ClaimPin(devID string, n int, fn core.PinFunc) (core.PinHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < boards.SelectedBoard.GPIOMin || n > boards.SelectedBoard.GPIOMax {
		return nil, errcode.UnknownPin
	}
	if owner, inUse := r.pinOwners[n]; inUse && owner.devID != devID {
		return nil, errcode.PinInUse
	}
	switch fn {
	case core.FuncGPIOIn, core.FuncGPIOOut:
	case core.FuncPWM:
		// Hardware PWM sits behind /dev/mem root access; nothing on this
		// board uses it.
		return nil, errcode.Unsupported
	default:
		return nil, errcode.Unsupported
	}
	r.pinOwners[n] = linuxPinOwner{devID: devID, fn: fn}
	return linuxPinHandle{g: &linuxGPIO{pin: rpio.Pin(n)}, fn: fn}, nil
}

func (r *linuxRegistry) ReleasePin(devID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.pinOwners[n]; ok && owner.devID == devID {
		delete(r.pinOwners, n)
	}
}

func (r *linuxRegistry) SubscribeGPIOEdges(devID string, pin int, edge core.Edge, debounce time.Duration, qlen int) (core.GPIOEdgeStream, error) {
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

	rp := rpio.Pin(pin)
	switch edge {
	case core.EdgeRising:
		rp.Detect(rpio.RiseEdge)
	case core.EdgeFalling:
		rp.Detect(rpio.FallEdge)
	default:
		rp.Detect(rpio.AnyEdge)
	}

	s := &linuxEdgeStream{
		pin:   pin,
		rp:    rp,
		edge:  edge,
		debMs: int64(debounce / time.Millisecond),
		outQ:  make(chan core.EdgeEvent, qlen),
		quit:  make(chan struct{}),
	}
	go s.run()
	r.edgeSubs[pin] = s
	return s, nil
}

func (r *linuxRegistry) UnsubscribeGPIOEdges(devID string, pin int) {
	r.mu.Lock()
	s := r.edgeSubs[pin]
	if s != nil {
		delete(r.edgeSubs, pin)
		rpio.Pin(pin).Detect(rpio.NoEdge)
	}
	r.mu.Unlock()
	if s != nil {
		s.Close()
	}
}
