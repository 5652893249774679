//go:build pico && (pico_ir_proto_1 || pico_ir_i2c_1)

package main

import (
	"context"
	"errors"
	"io"
	"machine"
	"runtime"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/services/config"
	"sensorcode-go/services/hal"
	"sensorcode-go/services/heartbeat"
	"sensorcode-go/services/stream"
	"sensorcode-go/services/trigger"
	"sensorcode-go/types"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// Firmware entry point for the Pico sensor-array boards. Flash with
//
//	tinygo flash -target=pico -tags=pico_ir_proto_1 ./cmd/pico-array-main
//	tinygo flash -target=pico -tags=pico_ir_i2c_1  ./cmd/pico-array-main
//
// Diagnostics go to USB CDC; sweep telemetry leaves on the uart0 link.
func main() {
	time.Sleep(3 * time.Second)

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, hal.BoardName())

	println("[main] board:", hal.BoardName())
	println("[main] bootstrapping bus …")
	b := bus.NewBus(8)
	halConn := b.NewConnection("hal")
	cfgConn := b.NewConnection("config")
	streamConn := b.NewConnection("stream")
	hbConn := b.NewConnection("heartbeat")
	trgConn := b.NewConnection("trigger")
	uiConn := b.NewConnection("main")

	// The stream service owns the telemetry UART; it dials through here.
	stream.UARTDial = openUART

	println("[main] starting services …")
	go hal.Run(ctx, halConn)
	go stream.Start(ctx, streamConn)
	_ = (&heartbeat.Service{}).Start(ctx, hbConn)
	// The user button requests an immediate sweep between scheduled polls.
	_ = (&trigger.Service{}).Start(ctx, trgConn)
	config.NewConfigService().Start(ctx, cfgConn)

	// Compiled-in board devices. Retained, so the HAL picks it up whenever
	// it finishes subscribing.
	println("[main] publishing config/hal …")
	uiConn.Publish(uiConn.NewMessage(bus.T("config", "hal"), hal.BoardConfig(), true))

	stateSub := uiConn.Subscribe(bus.T("hal", "state"))
	linkSub := uiConn.Subscribe(bus.T("stream", "state"))
	go func() {
		for {
			select {
			case m := <-stateSub.Channel():
				if st, ok := m.Payload.(types.HALState); ok {
					println("[hal]", st.Level, st.Status)
				}
			case m := <-linkSub.Channel():
				printLinkState(m.Payload)
			}
		}
	}()

	// Blink the status LED on each heartbeat through the HAL, the same path
	// any external controller would use.
	toggle := bus.T("hal", "cap", "io", "led", "onboard", "control", "toggle")
	tickSub := uiConn.Subscribe(bus.T("heartbeat", "tick"))
	for m := range tickSub.Channel() {
		tk, ok := m.Payload.(heartbeat.Tick)
		if !ok {
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, time.Second)
		if _, err := uiConn.RequestWait(rctx, uiConn.NewMessage(toggle, nil, false)); err != nil {
			println("[main] led toggle error:", err.Error())
		}
		cancel()
		if tk.Count%10 == 0 {
			printMem()
		}
	}
}

// openUART maps a UART id from config onto the uartx instance and brings the
// pins up. The stream service calls this on every (re)dial.
func openUART(_ context.Context, u stream.UARTConfig) (io.ReadWriteCloser, error) {
	var hw *uartx.UART
	switch u.ID {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, errors.New("unknown uart: " + u.ID)
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: u.Baud,
		TX:       machine.Pin(u.TX),
		RX:       machine.Pin(u.RX),
	}); err != nil {
		return nil, err
	}
	return &uartLink{u: hw}, nil
}

// uartLink adapts uartx to the stream transport contract. The telemetry link
// is one-way in practice; Read is wired for completeness.
type uartLink struct{ u *uartx.UART }

func (l *uartLink) Read(p []byte) (int, error)  { return l.u.RecvSomeContext(context.Background(), p) }
func (l *uartLink) Write(p []byte) (int, error) { return l.u.Write(p) }
func (l *uartLink) Close() error                { return nil }

func printLinkState(v any) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	lvl, _ := m["level"].(string)
	st, _ := m["status"].(string)
	println("[stream]", lvl, st)
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
// Uses builtin println to avoid fmt overhead/allocations.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"heapSys:", uint32(ms.HeapSys),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
