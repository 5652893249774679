package types

// TemperatureInfo names the physical sensor behind a temperature capability.
type TemperatureInfo struct {
	Sensor string `json:"sensor"` // "rp2_die", ...
	Addr   uint16 `json:"addr,omitempty"`
	Bus    string `json:"bus,omitempty"`
}

// TemperatureValue carries tenths of a degree C, so 231 reads as 23.1.
type TemperatureValue struct {
	DeciC int16 `json:"deci_c"`
}
