//go:build pico && pico_ir_proto_1

// Interactive bench console for the sensor-array boards. Commands arrive on
// the aux UART (hal/cap/io/serial/aux) so the whole serial stack is part of
// the loop; every verb goes to the HAL over the local bus, the same path any
// external controller would use.
//
//	tinygo flash -target=pico -tags=pico_ir_proto_1 ./cmd/boardtest
package main

import (
	"context"
	"fmt"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/muxwire"
	"sensorcode-go/services/hal"
	"sensorcode-go/types"
	"sensorcode-go/x/conv"
	"sensorcode-go/x/shmring"
	"sensorcode-go/x/strconvx"

	"github.com/google/shlex"
)

const halReadyTimeout = 5 * time.Second

// ---------- Topics ----------

func tArrayCtrl(verb string) bus.Topic {
	return bus.T("hal", "cap", "sensor", string(types.KindArray), "ir", "control", verb)
}

var (
	tArrayValue  = bus.T("hal", "cap", "sensor", string(types.KindArray), "ir", "value")
	tArraySample = bus.T("hal", "cap", "sensor", string(types.KindArray), "ir", "event", "sample")
	tArrayStatus = bus.T("hal", "cap", "sensor", string(types.KindArray), "ir", "status")
	tArrayInfo   = bus.T("hal", "cap", "sensor", string(types.KindArray), "ir", "info")
	tTempValue   = bus.T("hal", "cap", "env", string(types.KindTemperature), "mcu", "value")
)

// ---------- Console over the aux serial session ----------

type console struct {
	rx, tx *shmring.Ring
}

func (c *console) println(a ...any) {
	line := fmt.Sprintln(a...)
	print(line)
	if c.tx != nil {
		_ = c.tx.TryWriteFrom([]byte(line))
	}
}

func (c *console) printf(format string, a ...any) {
	line := fmt.Sprintf(format, a...)
	print(line)
	if c.tx != nil {
		_ = c.tx.TryWriteFrom([]byte(line))
	}
}

// readLine blocks until a full line arrives on the session RX ring. Bytes
// are echoed back so a dumb terminal shows what it types.
func (c *console) readLine() string {
	var line []byte
	tmp := make([]byte, 64)
	for {
		n := c.rx.TryReadInto(tmp)
		if n == 0 {
			<-c.rx.Readable()
			continue
		}
		_ = c.tx.TryWriteFrom(tmp[:n])
		for _, ch := range tmp[:n] {
			switch ch {
			case '\r':
				// swallow; terminals send CRLF or bare CR
			case '\n':
				return string(line)
			default:
				line = append(line, ch)
			}
		}
	}
}

func openConsole(ui *bus.Connection) *console {
	opened := ui.Subscribe(bus.T("hal", "cap", "io", string(types.KindSerial), "aux", "event", "session_opened"))
	defer ui.Unsubscribe(opened)

	ui.Publish(ui.NewMessage(
		bus.T("hal", "cap", "io", string(types.KindSerial), "aux", "control", "session_open"),
		nil, false))

	deadline := time.NewTimer(3 * time.Second)
	defer deadline.Stop()
	select {
	case m := <-opened.Channel():
		if ev, ok := m.Payload.(types.SerialSessionOpened); ok {
			return &console{
				rx: shmring.Get(shmring.Handle(ev.RXHandle)),
				tx: shmring.Get(shmring.Handle(ev.TXHandle)),
			}
		}
	case <-deadline.C:
	}
	return nil
}

// ---------- Helpers ----------

func waitHALReady(c *bus.Connection, d time.Duration) bool {
	sub := c.Subscribe(bus.T("hal", "state"))
	defer c.Unsubscribe(sub)

	dead := time.NewTimer(d)
	defer dead.Stop()
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == "ready" {
				return true
			}
		case <-dead.C:
			return false
		}
	}
}

// request sends a control and prints the outcome.
func request(c *console, ui *bus.Connection, topic bus.Topic, payload any) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rep, err := ui.RequestWait(ctx, ui.NewMessage(topic, payload, false))
	if err != nil {
		c.println("error:", err.Error())
		return
	}
	switch p := rep.Payload.(type) {
	case types.OKReply:
		c.println("ok")
	case types.ErrorReply:
		c.println("error:", p.Error)
	default:
		c.printf("reply: %+v\n", rep.Payload)
	}
}

// retained reads one retained message off a topic, or times out.
func retained(ui *bus.Connection, topic bus.Topic) (any, bool) {
	sub := ui.Subscribe(topic)
	defer ui.Unsubscribe(sub)
	deadline := time.NewTimer(500 * time.Millisecond)
	defer deadline.Stop()
	select {
	case m := <-sub.Channel():
		return m.Payload, true
	case <-deadline.C:
		return nil, false
	}
}

func parseChannel(s string) (uint8, bool) {
	v, err := strconvx.ParseUint(s, 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}

// ---------- Main ----------

func main() {
	time.Sleep(2 * time.Second)
	ctx := context.Background()

	b := bus.NewBus(8)
	halConn := b.NewConnection("hal")
	ui := b.NewConnection("boardtest")

	go hal.Run(ctx, halConn)
	ui.Publish(ui.NewMessage(bus.T("config", "hal"), hal.BoardConfig(), true))

	if !waitHALReady(ui, halReadyTimeout) {
		println("[boardtest] HAL not ready within timeout; continuing")
	}

	c := openConsole(ui)
	if c == nil {
		println("[boardtest] FAIL: no serial session; check the aux UART device")
		return
	}

	// Telemetry monitor: everything the array publishes shows up here.
	valSub := ui.Subscribe(tArrayValue)
	smpSub := ui.Subscribe(tArraySample)
	stSub := ui.Subscribe(tArrayStatus)
	go func() {
		for {
			select {
			case m := <-valSub.Channel():
				if sw, ok := m.Payload.(types.ArraySweep); ok {
					c.printf("sweep seq=%d samples=%v\n", sw.Seq, sw.Samples)
				}
			case m := <-smpSub.Channel():
				if s, ok := m.Payload.(types.ChannelSample); ok {
					c.printf("sample ch=%d raw=%d\n", s.Channel, s.Raw)
				}
			case m := <-stSub.Channel():
				if st, ok := m.Payload.(types.CapabilityStatus); ok {
					if st.Error != "" {
						c.printf("status %s (%s)\n", st.Link, st.Error)
					} else {
						c.printf("status %s\n", st.Link)
					}
				}
			}
		}
	}()

	c.println("sensor-array boardtest, type 'help'")
	for {
		c.printf("> ")
		args, err := shlex.Split(c.readLine())
		if err != nil {
			c.println("parse error:", err.Error())
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			c.println("commands:")
			c.println("  info                 retained array info")
			c.println("  sweep                read every channel once")
			c.println("  frame                hexdump the last sweep as a wire frame")
			c.println("  read <ch>            read one channel")
			c.println("  sel <ch>             select a channel, leave it routed")
			c.println("  en | dis             drive the enable line")
			c.println("  settle <us>          set the settle delay")
			c.println("  poll <ms> [jitter]   start a sweep poller")
			c.println("  poll stop            stop the sweep poller")
			c.println("  temp                 last die temperature")

		case "info":
			if v, ok := retained(ui, tArrayInfo); ok {
				if info, ok := v.(types.Info); ok {
					c.printf("driver=%s detail=%+v\n", info.Driver, info.Detail)
					continue
				}
			}
			c.println("no info retained")

		case "sweep":
			request(c, ui, tArrayCtrl("sweep"), nil)

		case "frame":
			v, ok := retained(ui, tArrayValue)
			if !ok {
				c.println("no sweep retained; run 'sweep' first")
				continue
			}
			sw, ok := v.(types.ArraySweep)
			if !ok {
				continue
			}
			buf := make([]byte, 0, muxwire.FrameLen(len(sw.Samples)))
			frame, err := muxwire.Marshal(buf, uint8(sw.Seq), sw.Samples)
			if err != nil {
				c.println("marshal error:", err.Error())
				continue
			}
			c.println(string(conv.AppendHex(nil, frame)))

		case "read":
			if len(args) != 2 {
				c.println("usage: read <ch>")
				continue
			}
			ch, ok := parseChannel(args[1])
			if !ok {
				c.println("bad channel:", args[1])
				continue
			}
			request(c, ui, tArrayCtrl("read"), types.ArrayRead{Channel: ch})

		case "sel":
			if len(args) != 2 {
				c.println("usage: sel <ch>")
				continue
			}
			ch, ok := parseChannel(args[1])
			if !ok {
				c.println("bad channel:", args[1])
				continue
			}
			request(c, ui, tArrayCtrl("select"), types.ArraySelect{Channel: ch})

		case "en":
			request(c, ui, tArrayCtrl("enable"), nil)

		case "dis":
			request(c, ui, tArrayCtrl("disable"), nil)

		case "settle":
			if len(args) != 2 {
				c.println("usage: settle <us>")
				continue
			}
			us, err := strconvx.ParseUint(args[1], 10, 32)
			if err != nil {
				c.println("bad settle:", args[1])
				continue
			}
			request(c, ui, tArrayCtrl("set_settle"), types.ArraySettle{US: uint32(us)})

		case "poll":
			if len(args) == 2 && args[1] == "stop" {
				request(c, ui, tArrayCtrl("poll_stop"), types.PollStop{Verb: "sweep"})
				continue
			}
			if len(args) < 2 {
				c.println("usage: poll <ms> [jitter] | poll stop")
				continue
			}
			iv, err := strconvx.ParseUint(args[1], 10, 32)
			if err != nil || iv == 0 {
				c.println("bad interval:", args[1])
				continue
			}
			var jit uint64
			if len(args) == 3 {
				jit, err = strconvx.ParseUint(args[2], 10, 16)
				if err != nil {
					c.println("bad jitter:", args[2])
					continue
				}
			}
			request(c, ui, tArrayCtrl("poll_start"), types.PollStart{
				Verb:       "sweep",
				IntervalMs: uint32(iv),
				JitterMs:   uint16(jit),
			})

		case "temp":
			if v, ok := retained(ui, tTempValue); ok {
				if tv, ok := v.(types.TemperatureValue); ok {
					c.printf("die %d.%d C\n", tv.DeciC/10, abs(int(tv.DeciC%10)))
					continue
				}
			}
			c.println("no temperature retained; is a poller running?")

		default:
			c.println("unknown command:", args[0], "- try 'help'")
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
