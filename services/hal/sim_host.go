//go:build !rp2040 && !rp2350 && !ir_hat_1

package hal

import (
	"sync"

	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/services/hal/internal/provider"
)

// Simulation hooks for host builds. Run wires the fake registry; these reach
// into it so simulators and tests can script hardware behaviour without
// importing internal packages. Each returns false until Run has started.

var (
	simMu  sync.Mutex
	simReg *provider.HostRegistry
)

func captureSim(reg core.ResourceRegistry) {
	hr, ok := reg.(*provider.HostRegistry)
	if !ok {
		return
	}
	simMu.Lock()
	simReg = hr
	simMu.Unlock()
}

func simRegistry() *provider.HostRegistry {
	simMu.Lock()
	defer simMu.Unlock()
	return simReg
}

// SimulateADC scripts the conversions on a fake input ("adc0"…"adc3").
func SimulateADC(id string, v uint16) bool {
	r := simRegistry()
	if r == nil {
		return false
	}
	a := r.ADC(core.ResourceID(id))
	if a == nil {
		return false
	}
	a.SimulateValue(v)
	return true
}

// SimulateADCFunc computes conversions at read time, eg. from the mux select
// pins. Pass nil to fall back to the last SimulateADC value.
func SimulateADCFunc(id string, f func() (uint16, error)) bool {
	r := simRegistry()
	if r == nil {
		return false
	}
	a := r.ADC(core.ResourceID(id))
	if a == nil {
		return false
	}
	a.SimulateFunc(f)
	return true
}

// SimulatePin drives a fake pin. Edge subscriptions on the pin see the
// transition, so this is how a simulator presses a button.
func SimulatePin(n int, level bool) bool {
	r := simRegistry()
	if r == nil {
		return false
	}
	p := r.Pin(n)
	if p == nil {
		return false
	}
	p.Set(level)
	return true
}

// SimPinLevel reads a fake pin back, select lines included.
func SimPinLevel(n int) (level, ok bool) {
	r := simRegistry()
	if r == nil {
		return false, false
	}
	p := r.Pin(n)
	if p == nil {
		return false, false
	}
	return p.Get(), true
}

// SimulateDieMilliC sets the on-die temperature in milli-degrees Celsius.
func SimulateDieMilliC(mC int32) bool {
	r := simRegistry()
	if r == nil {
		return false
	}
	r.SimulateDieMilliC(mC)
	return true
}
