package core

import (
	"context"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/errcode"
	"sensorcode-go/types"
	"sensorcode-go/x/timex"
)

const (
	eventQueueLen = 16
	pollQueueLen  = 8
)

type HAL struct {
	conn *bus.Connection
	res  Resources

	// Device registry
	dev map[string]Device // devID -> device

	// Capability index, filled as devices come up.
	capIndex map[CapAddr]string // addr -> devID

	cfgSub  *bus.Subscription
	ctrlSub *bus.Subscription

	// Single-threaded publication of device events
	evCh chan Event

	// Scheduled polls fire as Control calls on the owning device.
	poller *Poller
	pollCh chan PollReq
}

func NewHAL(conn *bus.Connection, res Resources) *HAL {
	h := &HAL{
		conn:     conn,
		res:      res,
		dev:      map[string]Device{},
		capIndex: map[CapAddr]string{},
		evCh:     make(chan Event, eventQueueLen),
		pollCh:   make(chan PollReq, pollQueueLen),
	}
	h.poller = NewPoller(h.pollCh)
	// HAL provides the emitter to devices.
	h.res.Pub = h
	return h
}

func (h *HAL) Run(ctx context.Context) {
	h.cfgSub = h.conn.Subscribe(topicConfigHAL())
	h.ctrlSub = h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(h.cfgSub)
	defer h.conn.Unsubscribe(h.ctrlSub)

	go h.poller.Run(ctx)

	ready := false
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.pubHALState("stopped", "context_cancelled")
			return
		case msg := <-h.cfgSub.Channel():
			if v, ok := msg.Payload.(types.HALConfig); ok {
				// applyConfig is additive/idempotent for existing devices.
				h.applyConfig(ctx, v)
				if !ready {
					ready = true
					h.pubHALState("ready", "")
				}
			}
		case m := <-h.ctrlSub.Channel():
			if !ready {
				// Reject controls until HAL has a configuration.
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m) // strictly non-blocking
		case req := <-h.pollCh:
			h.handlePoll(req)
		case ev := <-h.evCh:
			// All device→HAL telemetry is published from this goroutine.
			h.handleEvent(ev)
		}
	}
}

func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			println("[hal] no builder for type:", dc.Type, "id:", dc.ID)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{
			ID:     dc.ID,
			Type:   dc.Type,
			Params: dc.Params,
			Res:    h.res,
		})
		if err != nil {
			println("[hal] build failed for:", dc.ID, "err:", err.Error())
			continue
		}
		if err := dev.Init(ctx); err != nil {
			println("[hal] init failed for:", dc.ID)
			continue
		}
		h.dev[dev.ID()] = dev

		// Register capabilities, publish retained info + initial status:down
		for _, cs := range dev.Capabilities() {
			addr := CapAddr{Domain: cs.Domain, Kind: cs.Kind, Name: cs.Name}
			if addr.Domain == "" {
				addr.Domain = defaultDomainFor(cs.Kind)
			}
			if addr.Name == "" {
				addr.Name = dev.ID()
			}

			h.capIndex[addr] = dev.ID()

			h.conn.Publish(h.conn.NewMessage(
				addr.infoTopic(),
				types.Info{SchemaVersion: cs.Info.SchemaVersion, Driver: cs.Info.Driver, Detail: cs.Info.Detail},
				true,
			))
			h.conn.Publish(h.conn.NewMessage(
				addr.statusTopic(),
				types.CapabilityStatus{Link: types.LinkDown, TSms: timex.NowMs()},
				true,
			))
		}
	}

	// Declarative poll schedules ride alongside the device list.
	for _, ps := range cfg.Pollers {
		h.poller.Upsert(CapAddr{Domain: ps.Domain, Kind: ps.Kind, Name: ps.Name}, ps.Verb,
			time.Duration(ps.IntervalMs)*time.Millisecond,
			time.Duration(ps.JitterMs)*time.Millisecond)
	}
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if msg.Topic.Len() < 7 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	domain, _ := msg.Topic.At(2).(string)
	kind, _ := msg.Topic.At(3).(string)
	name, _ := msg.Topic.At(4).(string)
	verb, _ := msg.Topic.At(6).(string)

	addr := CapAddr{Domain: domain, Kind: types.Kind(kind), Name: name}
	ownerID, ok := h.capIndex[addr]
	if !ok {
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}

	// Poll lifecycle verbs are serviced by HAL itself.
	switch verb {
	case "poll_start":
		req, code := As[types.PollStart](msg.Payload)
		if code != "" || req.Verb == "" || req.IntervalMs == 0 {
			h.replyErr(msg, errcode.InvalidParams)
			return
		}
		h.poller.Upsert(addr, req.Verb,
			time.Duration(req.IntervalMs)*time.Millisecond,
			time.Duration(req.JitterMs)*time.Millisecond)
		h.replyOK(msg)
		return
	case "poll_stop":
		req, code := As[types.PollStop](msg.Payload)
		if code != "" {
			h.replyErr(msg, errcode.InvalidPayload)
			return
		}
		v := req.Verb
		if v == "" {
			v = "read"
		}
		h.poller.Stop(addr, v)
		h.replyOK(msg)
		return
	}

	dev := h.dev[ownerID]
	if dev == nil {
		h.replyErr(msg, errcode.Error)
		return
	}

	res, err := dev.Control(addr, verb, msg.Payload)
	if err != nil {
		h.replyFromError(msg, err)
		return
	}
	if !msg.CanReply() {
		return
	}
	if res.OK {
		h.replyOK(msg)
		return
	}
	code := res.Error
	if code == "" {
		code = errcode.Busy
	}
	h.conn.Reply(msg, types.ErrorReply{OK: false, Error: string(code)}, false)
}

func (h *HAL) handlePoll(req PollReq) {
	ownerID, ok := h.capIndex[req.Addr]
	if !ok {
		// Capability vanished; drop the schedule.
		h.poller.Stop(req.Addr, req.Verb)
		return
	}
	dev := h.dev[ownerID]
	if dev == nil {
		return
	}
	// Outcomes surface through the device's own events/status.
	_, _ = dev.Control(req.Addr, req.Verb, nil)
}

func (h *HAL) handleEvent(ev Event) {
	a := ev.Addr
	ts := ev.TSms
	if ts == 0 {
		ts = timex.NowMs()
	}

	// An error publishes only retained status:degraded.
	if ev.Err != "" {
		h.conn.Publish(h.conn.NewMessage(
			a.statusTopic(),
			types.CapabilityStatus{Link: types.LinkDegraded, TSms: ts, Error: ev.Err},
			true,
		))
		return
	}

	if ev.IsEvent || ev.EventTag != "" {
		h.conn.Publish(h.conn.NewMessage(a.eventTopic(ev.EventTag), ev.Payload, false))
	} else {
		h.conn.Publish(h.conn.NewMessage(a.valueTopic(), ev.Payload, true))
		// A fresh value resets the poll clock for this capability.
		h.poller.Defer(a, time.UnixMilli(ts))
	}
	h.conn.Publish(h.conn.NewMessage(
		a.statusTopic(),
		types.CapabilityStatus{Link: types.LinkUp, TSms: ts},
		true,
	))
}

func (h *HAL) closeAll() {
	for id, dev := range h.dev {
		if err := dev.Close(); err != nil {
			println("[hal] close failed for:", id)
		}
		delete(h.dev, id)
	}
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		T("hal", "state"),
		types.HALState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

func defaultDomainFor(kind types.Kind) string {
	switch kind {
	case types.KindTemperature:
		return "env"
	case types.KindArray:
		return "sensor"
	default:
		return "io"
	}
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}
