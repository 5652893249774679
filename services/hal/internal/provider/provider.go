package provider

import (
	"sensorcode-go/services/hal/internal/provider/setups"
	"sensorcode-go/types"
)

// SelectedPlan, InitialHALConfig and BoardName are filled in by build-tagged
// files (see setup_selected.go / setup_none.go in this package). They are
// declared here for a single import surface.
var (
	SelectedPlan     setups.ResourcePlan
	InitialHALConfig types.HALConfig
	BoardName        string
)
