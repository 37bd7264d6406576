package taskbed

import (
	"github.com/taskbed/taskbed/internal/core"
)

// GetOrCreateHarness returns the Harness for the given test, creating one if
// needed. Multiple calls with the same TestReporter return the same Harness
// instance. This lets test helpers and the test body share one queue stub and
// route table without threading the harness through every call.
func GetOrCreateHarness(t TestReporter) *Harness {
	return core.GetOrCreateHarness(t)
}
