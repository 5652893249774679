// Package config publishes the board's embedded configuration onto the bus.
//
// Each top-level key of the board's JSON object becomes one retained message
// on config/<key>, so a service subscribes to just the slice it cares about
// and still sees it when it comes up late. The HAL device table is not part
// of the embedded JSON: boards compile it in as typed structs and main
// publishes config/hal itself.
package config

import (
	"context"
	"errors"

	"sensorcode-go/bus"

	"github.com/andreyvit/tinyjson"
)

const (
	serviceName  = "config"
	configPrefix = "config"

	// CtxDeviceKey is the context key main uses to hand the board id to Start.
	CtxDeviceKey = "device"
)

var errNoDevice = errors.New("config: no board id in context")

// EmbeddedConfigLookup resolves a board id to its raw JSON. Tests and host
// tools swap it out to inject configs without touching the compiled table.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	raw, ok := embeddedConfigs[device]
	return raw, ok
}

// ConfigService turns the embedded board config into retained bus state.
type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// Start publishes in the background so main can bring the other services up
// without waiting. A failure is terminal for this boot: the config is
// compiled in, so retrying cannot change the outcome.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishEmbedded(ctx, conn); err != nil {
			println("["+s.Name+"]", err.Error())
		}
	}()
}

// publishEmbedded resolves the board's JSON and retains one message per
// top-level key.
func (s *ConfigService) publishEmbedded(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errNoDevice
	}

	sections, err := loadSections(device)
	if err != nil {
		return err
	}
	for key, val := range sections {
		conn.PublishRetained(bus.T(configPrefix, key), val)
	}
	return nil
}

// loadSections parses a board's embedded JSON into its top-level keys.
func loadSections(device string) (map[string]any, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return nil, errors.New("config: no embedded config for " + device)
	}

	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	sections, ok := val.(map[string]any)
	if !ok {
		return nil, errors.New("config: embedded config for " + device + " is not an object")
	}
	return sections, nil
}
