package config

// Embedded configuration, keyed by board id (the value main places in ctx
// under CtxDeviceKey). The HAL device table is not duplicated here: boards
// compile it in as typed structs (hal.BoardConfig) and main publishes it, so
// a JSON copy would only fight over the retained config/hal message.

const cfgPicoIRProto1 = `{
  "stream": {
    "transport": {
      "type": "uart",
      "uart": {"id": "uart0", "baud": 115200, "tx_pin": 0, "rx_pin": 1}
    }
  },
  "heartbeat": {
      "interval": 2
  }
}`

const cfgPicoIRI2C1 = `{
  "stream": {
    "transport": {
      "type": "uart",
      "uart": {"id": "uart0", "baud": 115200, "tx_pin": 0, "rx_pin": 1}
    }
  },
  "heartbeat": {
      "interval": 2
  }
}`

const cfgPiIRHat1 = `{
  "stream": {
    "transport": {
      "type": "stdout"
    }
  },
  "heartbeat": {
      "interval": 5
  }
}`

// Host simulator: no setup tag, devices come from the simulator itself.
const cfgHost = `{
  "stream": {
    "transport": {
      "type": "stdout"
    }
  },
  "heartbeat": {
      "interval": 1
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico_ir_proto_1": []byte(cfgPicoIRProto1),
	"pico_ir_i2c_1":   []byte(cfgPicoIRI2C1),
	"pi_ir_hat_1":     []byte(cfgPiIRHat1),
	"host":            []byte(cfgHost),
}
