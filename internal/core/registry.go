package core

import (
	"sync"
)

// GetOrCreateHarness returns the Harness for the given test, creating one if
// needed. Multiple calls with the same TestReporter return the same Harness
// instance, so test helpers and the test body share one queue stub and route
// table.
//
// If the TestReporter supports Cleanup (like *testing.T), the Harness is
// automatically removed from the registry when the test completes.
func GetOrCreateHarness(t TestReporter) *Harness {
	registryMu.Lock()
	defer registryMu.Unlock()

	if harness, ok := registry[t]; ok {
		return harness
	}

	harness := NewHarness(t)
	registry[t] = harness

	// Register cleanup if the TestReporter supports it
	if cr, ok := t.(cleanupRegistrar); ok {
		cr.Cleanup(func() {
			registryMu.Lock()
			delete(registry, t)
			registryMu.Unlock()
		})
	}

	return harness
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Package-level registry is intentional for test coordination
	registry = make(map[TestReporter]*Harness)
	//nolint:gochecknoglobals // Mutex for registry
	registryMu sync.Mutex
)
