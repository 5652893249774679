package heartbeat

import (
	"context"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	topicTick            = bus.Topic{"heartbeat", "tick"}
)

// Tick is the liveness payload published every interval. Mains typically
// toggle the status LED on it.
type Tick struct {
	Count  uint32 `json:"count"`
	Uptime uint32 `json:"uptime_s"`
	TSms   int64  `json:"ts_ms"`
}

type Service struct{}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	start := time.Now()
	var count uint32

	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case <-tick.C:
			count++
			conn.Publish(conn.NewMessage(topicTick, Tick{
				Count:  count,
				Uptime: uint32(time.Since(start) / time.Second),
				TSms:   timex.NowMs(),
			}, false))
		case msg := <-cfgSub.Channel():
			// Interval arrives in seconds; fractions are fine.
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"].(float64); ok && iv > 0 {
					tick.Reset(time.Duration(iv * float64(time.Second)))
				}
			}
		}
	}
}

// Start launches the heartbeat publisher.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
