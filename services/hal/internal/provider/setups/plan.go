package setups

// ResourcePlan is the wiring a board setup hands the provider: which buses,
// ports and analog inputs exist and where their pins sit. Providers turn the
// plan into live resource owners at boot.
type ResourcePlan struct {
	I2C  []I2CPlan
	UART []UARTPlan
	ADC  []ADCPlan
	// SPI, CAN and friends join here as boards need them.
}

// I2CPlan pins down one transactional bus instance.
type I2CPlan struct {
	ID  string // resource id, "i2c0"
	SDA int    // GPIO number
	SCL int    // GPIO number
	Hz  uint32 // bus frequency
}

// UARTPlan pins down one serial port.
type UARTPlan struct {
	ID   string // resource id, "uart0"
	TX   int    // GPIO number
	RX   int    // GPIO number
	Baud uint32 // boot baud; devices may retune it per session
}

// ADCPlan exposes one analog input.
type ADCPlan struct {
	ID   string // resource id, "adc0"
	GPIO int    // GPIO number, 26..29 on RP2040
}
