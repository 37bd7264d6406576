package core

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultMaxRetries caps how many times the drain loop re-runs a failing task
// before giving up.
const DefaultMaxRetries = 100

// RunCounts tallies executed tasks per route pattern.
type RunCounts map[string]int

// Total returns the number of executions across all routes.
func (c RunCounts) Total() int {
	total := 0
	for _, count := range c {
		total += count
	}

	return total
}

// merge adds other's counts into c.
func (c RunCounts) merge(other RunCounts) {
	for route, count := range other {
		c[route] += count
	}
}

// Harness wires a queue stub to a route table and drives the hosting
// platform's dispatch loop in-process. It is the per-test coordinator: tests
// register routes, schedule tasks on the stub, and drain queues through it.
type Harness struct {
	T      TestReporter
	Stub   *Stub
	Routes RouteTable

	// Host overrides the synthesized request host; empty means DefaultHost.
	Host string

	// MaxRetries caps per-task retries; 0 means DefaultMaxRetries.
	MaxRetries int
}

// NewHarness returns a harness with a fresh stub and no routes.
func NewHarness(t TestReporter) *Harness {
	return &Harness{
		T:    t,
		Stub: NewStub(),
	}
}

// Handle appends a route serving pattern.
func (h *Harness) Handle(pattern string, handler http.Handler) {
	h.Routes = append(h.Routes, Route{Pattern: pattern, Handler: handler})
}

// HandleFunc is Handle for bare functions.
func (h *Harness) HandleFunc(pattern string, handler http.HandlerFunc) {
	h.Handle(pattern, handler)
}

// CreateQueue creates a named queue on the stub.
func (h *Harness) CreateQueue(name string) {
	h.Stub.CreateQueue(name)
}

// Add schedules a task on the stub.
func (h *Harness) Add(task *Task) error {
	return h.Stub.Add(task)
}

// MustAdd schedules a task and fails the test if the stub rejects it.
func (h *Harness) MustAdd(task *Task) {
	h.T.Helper()

	err := h.Stub.Add(task)
	if err != nil {
		h.T.Fatalf("adding task: %v", err)
	}
}

// ExecuteTask runs a single task against the harness routes with the given
// execution count.
func (h *Harness) ExecuteTask(task *Task, retries int) (*TaskResult, error) {
	return ExecuteTask(task, retries, h.Routes, h.Host)
}

// ExecuteAll runs and removes every task currently scheduled on queue. A
// failing task is retried with an incremented execution count until it
// succeeds or exhausts the retry cap; an exhausted task aborts the drain with
// the last handler error. Tasks enqueued by handlers during the drain are
// left scheduled for the next round.
func (h *Harness) ExecuteAll(queue string) (RunCounts, error) {
	h.T.Helper()

	tasks := h.Stub.Tasks(queue)
	h.Stub.Flush(queue)

	counts := RunCounts{}

	for _, task := range tasks {
		result, err := h.executeWithRetries(task)
		if err != nil {
			return counts, err
		}

		counts[result.Route]++
		h.Stub.Tombstone(task)
	}

	return counts, nil
}

// ExecuteUntilEmpty drains queue until handlers stop enqueueing follow-up
// tasks, merging the run counts of every round.
func (h *Harness) ExecuteUntilEmpty(queue string) (RunCounts, error) {
	h.T.Helper()

	total := RunCounts{}

	for len(h.Stub.Tasks(queue)) > 0 {
		counts, err := h.ExecuteAll(queue)

		total.merge(counts)

		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// MustExecuteUntilEmpty drains queue and fails the test on error.
func (h *Harness) MustExecuteUntilEmpty(queue string) RunCounts {
	h.T.Helper()

	counts, err := h.ExecuteUntilEmpty(queue)
	if err != nil {
		h.T.Fatalf("draining queue %q: %v", queue, err)
	}

	return counts
}

// executeWithRetries runs one task to success or retry exhaustion. An
// unroutable task fails immediately; retrying cannot fix routing.
func (h *Harness) executeWithRetries(task *Task) (*TaskResult, error) {
	maxRetries := h.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	for retries := 0; ; retries++ {
		result, err := h.ExecuteTask(task, retries)
		if err == nil {
			return result, nil
		}

		if errors.Is(err, ErrNoRoute) {
			return nil, err
		}

		if retries >= maxRetries {
			h.T.Logf("task %q failed too many times, giving up", task.Name)

			return nil, fmt.Errorf("task %q exhausted %d retries: %w", task.Name, maxRetries, err)
		}

		h.T.Logf("task %q is being retried for the %d time", task.Name, retries+1)
	}
}
