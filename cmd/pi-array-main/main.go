//go:build linux && ir_hat_1

// Service binary for the Raspberry Pi hat build. Runs the same stack as the
// Pico firmware on the host runtime: sensor sweeps leave as wire frames on
// stdout (pipe into muxmon or anything else that speaks the format), logs go
// to stderr.
//
//	go build -tags=ir_hat_1 ./cmd/pi-array-main
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dikkadev/prettyslog"

	"sensorcode-go/bus"
	"sensorcode-go/services/config"
	"sensorcode-go/services/hal"
	"sensorcode-go/services/heartbeat"
	"sensorcode-go/services/stream"
	"sensorcode-go/types"
)

func main() {
	logger := slog.New(prettyslog.NewPrettyslogHandler("array",
		prettyslog.WithLevel(slog.LevelDebug),
		prettyslog.WithWriter(os.Stderr), // stdout carries telemetry frames
	))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, config.CtxDeviceKey, hal.BoardName())

	slog.Info("starting", "board", hal.BoardName())

	// The embedded config points the stream service at the "stdout"
	// transport, registered by the stream package on host builds.
	b := bus.NewBus(16)
	halConn := b.NewConnection("hal")
	cfgConn := b.NewConnection("config")
	streamConn := b.NewConnection("stream")
	hbConn := b.NewConnection("heartbeat")
	mainConn := b.NewConnection("main")

	go hal.Run(ctx, halConn)
	go stream.Start(ctx, streamConn)
	_ = (&heartbeat.Service{}).Start(ctx, hbConn)
	config.NewConfigService().Start(ctx, cfgConn)

	mainConn.Publish(mainConn.NewMessage(bus.T("config", "hal"), hal.BoardConfig(), true))

	stateSub := mainConn.Subscribe(bus.T("hal", "state"))
	linkSub := mainConn.Subscribe(bus.T("stream", "state"))
	tickSub := mainConn.Subscribe(bus.T("heartbeat", "tick"))

	toggle := bus.T("hal", "cap", "io", string(types.KindLED), "status", "control", "toggle")
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return
		case m := <-stateSub.Channel():
			if st, ok := m.Payload.(types.HALState); ok {
				slog.Info("hal state", "level", st.Level, "status", st.Status)
			}
		case m := <-linkSub.Channel():
			logLinkState(m.Payload)
		case m := <-tickSub.Channel():
			if _, ok := m.Payload.(heartbeat.Tick); !ok {
				continue
			}
			rctx, cancel := context.WithTimeout(ctx, time.Second)
			if _, err := mainConn.RequestWait(rctx, mainConn.NewMessage(toggle, nil, false)); err != nil {
				slog.Warn("led toggle failed", "err", err)
			}
			cancel()
		}
	}
}

func logLinkState(v any) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	lvl, _ := m["level"].(string)
	st, _ := m["status"].(string)
	if lvl == "error" || lvl == "degraded" {
		slog.Warn("stream state", "level", lvl, "status", st)
		return
	}
	slog.Info("stream state", "level", lvl, "status", st, "frames", m["frames"])
}
