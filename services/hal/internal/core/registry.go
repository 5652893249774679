package core

import (
	"sync"

	"sensorcode-go/x/fmtx"
)

// Device packages register their builders from init, keyed by the type
// string that appears in HALConfig. A duplicate key is a programming error
// caught at boot, hence the panic.

var (
	regMu    sync.RWMutex
	builders = map[string]Builder{}
)

func RegisterBuilder(typ string, b Builder) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := builders[typ]; exists {
		panic(fmtx.Sprintf("duplicate device builder: %s", typ))
	}
	builders[typ] = b
}

func lookupBuilder(typ string) (Builder, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := builders[typ]
	return b, ok
}
