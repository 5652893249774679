// Smoke target: the smallest build that proves the bus and service plumbing.
// It needs no setup tag, so it flashes to any board or runs on the host:
//
//	tinygo flash -target=pico .
//	go run .
package main

import (
	"context"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/services/heartbeat"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	ctx := context.Background()
	b := bus.NewBus(4)

	hbConn := b.NewConnection("heartbeat")
	_ = (&heartbeat.Service{}).Start(ctx, hbConn)

	conn := b.NewConnection("main")
	ticks := conn.Subscribe(bus.T("heartbeat", "tick"))
	for m := range ticks.Channel() {
		if tk, ok := m.Payload.(heartbeat.Tick); ok {
			println(tk.Count, "Heartbeat, up", tk.Uptime, "s")
		}
	}
}
