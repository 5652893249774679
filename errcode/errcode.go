// Package errcode defines the error identifiers that travel over the bus.
// Devices return them, reply envelopes embed them, and host tools switch on
// the exact strings, so the values here are a wire contract.
package errcode

import "errors"

// Code is a comparable error identifier. The string form is what goes on
// the wire.
type Code string

func (c Code) Error() string { return string(c) }

// Request and payload codes.
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	UnknownCapability Code = "unknown_capability"
	HALNotReady       Code = "hal_not_ready"
	InvalidTopic      Code = "invalid_topic"
)

// Resource claim codes. Pins are addressed by number, buses and other
// registry resources by ID; Conflict covers claims with no finer code.
const (
	UnknownBus Code = "unknown_bus"
	BusInUse   Code = "bus_in_use"
	UnknownPin Code = "unknown_pin"
	PinInUse   Code = "pin_in_use"
	Conflict   Code = "conflict"
	Timeout    Code = "timeout"
)

// Error is the fallback for causes with no mapping.
const Error Code = "error"

// Of unwraps err down to a Code. nil reads as OK; anything that does not
// carry a Code collapses to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// MapDriverErr converts a low-level driver error to a bus code. A wrapped
// Code passes through; foreign errors collapse to Error until a platform
// grows finer mappings.
func MapDriverErr(err error) Code {
	return Of(err)
}
