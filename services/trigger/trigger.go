// Package trigger bridges operator input to array actions: every press of
// the user button requests one sweep, over the same control topic an
// external controller would use.
package trigger

import (
	"context"
	"time"

	"sensorcode-go/bus"
)

var (
	defaultButton = bus.Topic{"hal", "cap", "io", "button", "user", "event", "pressed"}
	defaultSweep  = bus.Topic{"hal", "cap", "sensor", "array", "ir", "control", "sweep"}
)

// Service fires a sweep control request for each button press. The zero
// value watches the user button and drives the ir array.
type Service struct {
	Button bus.Topic // pressed-event topic to watch
	Sweep  bus.Topic // sweep control topic to fire
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	button := s.Button
	if button.Len() == 0 {
		button = defaultButton
	}
	sweep := s.Sweep
	if sweep.Len() == 0 {
		sweep = defaultSweep
	}

	presses := conn.Subscribe(button)
	defer conn.Unsubscribe(presses)

	for {
		select {
		case <-ctx.Done():
			println("Info: trigger service stopping")
			return
		case _, ok := <-presses.Channel():
			if !ok {
				return
			}
			rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			_, err := conn.RequestWait(rctx, conn.NewMessage(sweep, nil, false))
			cancel()
			if err != nil {
				println("Info: trigger sweep request failed:", err.Error())
			}
		}
	}
}

// Start launches the button-to-sweep bridge.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
