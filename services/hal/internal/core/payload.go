package core

import "sensorcode-go/errcode"

// As narrows a bus payload to the value type T. A nil payload reads as T's
// zero value so bare control verbs like "toggle" need no body. Pointers fail
// the assertion on purpose: payloads are copied, never shared.
func As[T any](v any) (T, errcode.Code) {
	if v == nil {
		var zero T
		return zero, ""
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, errcode.InvalidPayload
	}
	return t, ""
}
