package core

import (
	"sensorcode-go/bus"
	"sensorcode-go/errcode"
	"sensorcode-go/types"
)

// Request replies. Fire-and-forget messages have no reply inbox, so every
// path checks CanReply first.

func (h *HAL) replyOK(m *bus.Message) {
	if m.CanReply() {
		h.conn.Reply(m, types.OKReply{OK: true}, false)
	}
}

func (h *HAL) replyErr(m *bus.Message, code errcode.Code) {
	if !m.CanReply() {
		return
	}
	if code == "" {
		code = errcode.Error
	}
	h.conn.Reply(m, types.ErrorReply{OK: false, Error: string(code)}, false)
}

// replyFromError maps an arbitrary device error onto the canonical reply
// vocabulary before answering.
func (h *HAL) replyFromError(m *bus.Message, err error) {
	h.replyErr(m, errcode.Of(err))
}
