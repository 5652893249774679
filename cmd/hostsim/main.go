//go:build !rp2040 && !rp2350 && !ir_hat_1

// Host simulator: the full firmware stack on the fake registry, with a
// scripted sensor field behind the multiplexer. Useful for developing
// consumers without a board on the desk; frames leave on stdout exactly as
// on the Pi build, logs go to stderr.
//
//	go run ./cmd/hostsim | xxd
package main

import (
	"context"
	"flag"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dikkadev/prettyslog"

	"sensorcode-go/bus"
	"sensorcode-go/services/config"
	"sensorcode-go/services/hal"
	"sensorcode-go/services/hal/devices/gpio_button"
	"sensorcode-go/services/hal/devices/gpio_dout"
	"sensorcode-go/services/hal/devices/mux_array"
	"sensorcode-go/services/hal/devices/pwm_out"
	"sensorcode-go/services/hal/devices/rp2_temp"
	"sensorcode-go/services/heartbeat"
	"sensorcode-go/services/stream"
	"sensorcode-go/services/trigger"
	"sensorcode-go/types"
	"sensorcode-go/x/mathx"
)

// Pin map mirrors the breadboard prototype so captures line up.
const (
	pinS0      = 2
	pinEN      = 6
	pinButton  = 7
	pinEmitter = 15
)

func main() {
	channels := flag.Int("channels", 16, "populated mux inputs (1..16)")
	sweepMs := flag.Int("sweep-ms", 500, "sweep poller interval")
	flag.Parse()
	if *channels < 1 || *channels > 16 {
		slog.Error("channels out of range", "channels", *channels)
		os.Exit(2)
	}

	logger := slog.New(prettyslog.NewPrettyslogHandler("hostsim",
		prettyslog.WithLevel(slog.LevelDebug),
		prettyslog.WithWriter(os.Stderr), // stdout carries telemetry frames
	))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, config.CtxDeviceKey, hal.BoardName())

	slog.Info("starting", "board", hal.BoardName(), "channels", *channels)

	b := bus.NewBus(16)
	halConn := b.NewConnection("hal")
	cfgConn := b.NewConnection("config")
	streamConn := b.NewConnection("stream")
	hbConn := b.NewConnection("heartbeat")
	trgConn := b.NewConnection("trigger")
	mainConn := b.NewConnection("sim")

	go hal.Run(ctx, halConn)
	go stream.Start(ctx, streamConn)
	_ = (&heartbeat.Service{}).Start(ctx, hbConn)
	// The scripted press below lands as a real sweep through this bridge.
	_ = (&trigger.Service{}).Start(ctx, trgConn)
	config.NewConfigService().Start(ctx, cfgConn)

	mainConn.Publish(mainConn.NewMessage(bus.T("config", "hal"), simConfig(uint8(*channels), uint32(*sweepMs)), true))

	scene := newScene(uint8(*channels))
	go scene.run(ctx)
	go dim(ctx, b.NewConnection("dimmer"))

	watch(ctx, mainConn)
	slog.Info("shutting down")
}

// simConfig mirrors the proto board's device table on the fake registry.
func simConfig(channels uint8, sweepMs uint32) types.HALConfig {
	return types.HALConfig{
		Devices: []types.HALDevice{
			{ID: "array0", Type: "mux_array", Params: mux_array.Params{
				S0: pinS0, S1: pinS0 + 1, S2: pinS0 + 2, S3: pinS0 + 3,
				EN:       pinEN,
				ADC:      "onboard:adc0",
				Channels: channels,
				SettleUS: 5,
				Domain:   "sensor",
				Name:     "ir",
			}},
			{ID: "onboard", Type: "gpio_led", Params: gpio_dout.Params{Pin: 25}},
			{ID: "emitters", Type: "pwm_out", Params: pwm_out.Params{
				Pin: pinEmitter, FreqHz: 25_000, Top: 1000, Initial: 1000,
				Domain: "io", Name: "emitters",
			}},
			{ID: "user", Type: "gpio_button", Params: gpio_button.Params{
				Pin: pinButton, Pull: "up", Invert: true, DebounceMs: 20,
				Domain: "io", Name: "user",
			}},
			{ID: "mcu", Type: "rp2_temp", Params: rp2_temp.Params{Domain: "env", Name: "mcu"}},
		},
		Pollers: []types.PollSpec{
			{Domain: "sensor", Kind: types.KindArray, Name: "ir", Verb: "sweep", IntervalMs: sweepMs, JitterMs: 25},
			{Domain: "env", Kind: types.KindTemperature, Name: "mcu", Verb: "read", IntervalMs: 2000},
		},
	}
}

// -----------------------------------------------------------------------------
// Scripted hardware scene
// -----------------------------------------------------------------------------

// scene animates what the fake hardware reports: a per-channel field read
// back through the live select pins, die-temperature drift and an
// occasionally pressed button.
type scene struct {
	mu       sync.Mutex
	channels uint8
	phase    float64
}

func newScene(channels uint8) *scene {
	return &scene{channels: channels}
}

func (s *scene) run(ctx context.Context) {
	// The registry is wired a moment after hal.Run starts; retry until the
	// hook lands.
	for !hal.SimulateADCFunc("adc0", s.convert) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	hal.SimulatePin(pinButton, true) // idle high behind the pull-up

	animate := time.NewTicker(100 * time.Millisecond)
	defer animate.Stop()
	button := time.NewTicker(5 * time.Second)
	defer button.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-animate.C:
			s.mu.Lock()
			s.phase += 0.05
			ph := s.phase
			s.mu.Unlock()
			hal.SimulateDieMilliC(25_000 + int32(3_000*math.Sin(ph/4)))
		case <-button.C:
			go press()
		}
	}
}

// press taps the user button for 200 ms.
func press() {
	slog.Debug("sim: button press")
	hal.SimulatePin(pinButton, false)
	time.Sleep(200 * time.Millisecond)
	hal.SimulatePin(pinButton, true)
}

// convert runs on the HAL goroutine at conversion time. The routed channel
// is decoded from the select pins, so sweeps see the field exactly as a real
// CD4067 would expose it.
func (s *scene) convert() (uint16, error) {
	if lvl, ok := hal.SimPinLevel(pinEN); !ok || lvl {
		// Enable is active-low: a disabled mux leaves the line floating
		// near the noise floor.
		return uint16(0x0040 + rand.Intn(0x10)), nil
	}
	ch := 0
	for bit := 0; bit < 4; bit++ {
		if lvl, _ := hal.SimPinLevel(pinS0 + bit); lvl {
			ch |= 1 << bit
		}
	}

	s.mu.Lock()
	ph := s.phase
	s.mu.Unlock()

	// Slow wave per channel plus a little noise, kept inside 12-bit range.
	base := 0x0200 + 0x60*ch
	wave := 0x0180 * math.Sin(ph+float64(ch)/3)
	v := base + int(wave) + rand.Intn(0x20) - 0x10
	return uint16(mathx.Clamp(v, 0, 0x0FFF)), nil
}

// dim walks the emitter brightness up and down through the control path, the
// way a controller would trim IR output against ambient light.
func dim(ctx context.Context, conn *bus.Connection) {
	ramp := bus.T("hal", "cap", "io", string(types.KindPWM), "emitters", "control", "ramp")
	targets := []uint16{250, 1000}

	tick := time.NewTicker(10 * time.Second)
	defer tick.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			to := targets[i%len(targets)]
			rctx, cancel := context.WithTimeout(ctx, time.Second)
			_, err := conn.RequestWait(rctx, conn.NewMessage(ramp, types.PWMRamp{
				To: to, DurationMs: 2000, Steps: 20,
			}, false))
			cancel()
			if err != nil {
				slog.Warn("emitter ramp failed", "to", to, "err", err)
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Observers
// -----------------------------------------------------------------------------

func watch(ctx context.Context, conn *bus.Connection) {
	stateSub := conn.Subscribe(bus.T("hal", "state"))
	linkSub := conn.Subscribe(bus.T("stream", "state"))
	sweepSub := conn.Subscribe(bus.T("hal", "cap", "sensor", string(types.KindArray), "ir", "value"))
	btnSub := conn.Subscribe(bus.T("hal", "cap", "io", string(types.KindButton), "user", "event", "+"))
	pwmSub := conn.Subscribe(bus.T("hal", "cap", "io", string(types.KindPWM), "emitters", "value"))
	tempSub := conn.Subscribe(bus.T("hal", "cap", "env", string(types.KindTemperature), "mcu", "value"))

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-stateSub.Channel():
			if st, ok := m.Payload.(types.HALState); ok {
				slog.Info("hal state", "level", st.Level, "status", st.Status)
			}
		case m := <-linkSub.Channel():
			if sm, ok := m.Payload.(map[string]any); ok {
				slog.Info("stream state", "level", sm["level"], "status", sm["status"], "frames", sm["frames"])
			}
		case m := <-sweepSub.Channel():
			if sw, ok := m.Payload.(types.ArraySweep); ok {
				lo, hi := minMax(sw.Samples)
				slog.Debug("sweep", "seq", sw.Seq, "n", len(sw.Samples), "min", lo, "max", hi)
			}
		case m := <-btnSub.Channel():
			slog.Info("button", "event", m.Topic.At(m.Topic.Len()-1))
		case m := <-pwmSub.Channel():
			if pv, ok := m.Payload.(types.PWMValue); ok {
				slog.Debug("emitters", "level", pv.Level)
			}
		case m := <-tempSub.Channel():
			if tv, ok := m.Payload.(types.TemperatureValue); ok {
				slog.Debug("die temperature", "deci_c", tv.DeciC)
			}
		}
	}
}

func minMax(s []uint16) (lo, hi uint16) {
	if len(s) == 0 {
		return 0, 0
	}
	lo, hi = s[0], s[0]
	for _, v := range s[1:] {
		lo = mathx.Min(lo, v)
		hi = mathx.Max(hi, v)
	}
	return lo, hi
}
