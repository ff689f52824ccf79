// Package camera provides camera handle implementations and frame adapters
// for the capture pipeline: a serial-attached thermal module transport, a
// synthetic camera for dev mode, and a scriptable camera for tests.
package camera

import (
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/thermal.view/internal/thermal"
)

// Global registry of frame adapters keyed by name.
var (
	adapterRegistry   = map[string]thermal.Adapter{}
	adapterRegistryMu sync.RWMutex
)

// RegisterAdapter registers an adapter under its name. Registering a nil
// adapter or an empty name is a no-op.
func RegisterAdapter(a thermal.Adapter) {
	if a == nil || a.Name() == "" {
		return
	}
	adapterRegistryMu.Lock()
	defer adapterRegistryMu.Unlock()
	adapterRegistry[a.Name()] = a
}

// AdapterByName returns a registered adapter.
func AdapterByName(name string) (thermal.Adapter, error) {
	adapterRegistryMu.RLock()
	defer adapterRegistryMu.RUnlock()
	a, ok := adapterRegistry[name]
	if !ok {
		names := make([]string, 0, len(adapterRegistry))
		for n := range adapterRegistry {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown camera adapter %q (valid: %v)", name, names)
	}
	return a, nil
}

// AdapterNames returns the registered adapter names in sorted order.
func AdapterNames() []string {
	adapterRegistryMu.RLock()
	defer adapterRegistryMu.RUnlock()
	names := make([]string, 0, len(adapterRegistry))
	for name := range adapterRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
