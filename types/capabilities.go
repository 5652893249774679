// Package types defines the payload contracts that travel over the bus:
// capability kinds, request shapes for the control verbs, retained info and
// status envelopes, and the HAL configuration tables. Everything here
// marshals to JSON for the host tools; firmware passes the structs by value.
package types

// Kind buckets capabilities by behaviour. It is the second token of a
// capability address.
type Kind string

const (
	KindLED         Kind = "led"
	KindSwitch      Kind = "switch"
	KindPWM         Kind = "pwm"
	KindButton      Kind = "button"
	KindTemperature Kind = "temperature"
	KindSerial      Kind = "serial"
	KindArray       Kind = "array"
)
