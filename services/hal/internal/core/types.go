package core

import (
	"context"

	"sensorcode-go/errcode"
	"sensorcode-go/types"
)

// ---- Capability & device model ----

// CapAddr identifies one capability on the bus:
// hal/cap/<domain>/<kind>/<name>/...
type CapAddr struct {
	Domain string
	Kind   types.Kind
	Name   string
}

type CapabilitySpec struct {
	Domain string     // "" => HAL infers from Kind
	Kind   types.Kind //
	Name   string     // "" => device ID
	Info   types.Info // retained .../info payload
}

// EnqueueResult is the synchronous outcome of a Control call. OK means the
// request was accepted (not necessarily completed); Error carries the
// rejection code otherwise.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
}

// Device is one configured hardware entity. Control must not block: long
// work is queued inside the device and surfaced later through Emit.
type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, verb string, payload any) (EnqueueResult, error)
	Close() error // release claimed resources
}

// ---- Builders ----

type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}
