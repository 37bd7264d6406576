// Package taskbed simulates a task-queue hosting platform for tests: an
// in-memory queue stub, a URL-pattern dispatcher that synthesizes the
// platform's request environment, and a drain loop with retry bookkeeping.
//
// This is the public API entry point. Implementation lives in internal/core.
package taskbed

import (
	"net/url"

	"github.com/taskbed/taskbed/internal/core"
)

// DefaultQueue is the queue every new Stub starts with.
const DefaultQueue = core.DefaultQueue

// DefaultHost is the host synthesized requests appear to target.
const DefaultHost = core.DefaultHost

// DefaultMaxRetries caps how many times the drain loop re-runs a failing task
// before giving up.
const DefaultMaxRetries = core.DefaultMaxRetries

// DefaultCompressThreshold is the encoded-payload size above which
// EncodePayload switches to the compressed wrapping.
const DefaultCompressThreshold = core.DefaultCompressThreshold

// Headers set on every synthesized request, mirroring what the hosting
// platform attaches when it delivers a task.
const (
	HeaderTaskName       = core.HeaderTaskName
	HeaderQueueName      = core.HeaderQueueName
	HeaderExecutionCount = core.HeaderExecutionCount
)

// Errors re-exported from internal/core.
var (
	ErrUnknownQueue  = core.ErrUnknownQueue
	ErrDuplicateTask = core.ErrDuplicateTask
	ErrBadTask       = core.ErrBadTask
	ErrNoRoute       = core.ErrNoRoute
	ErrTaskFailed    = core.ErrTaskFailed
)

// Task is a single unit of work scheduled against the queue stub.
type Task = core.Task

// Stub is an in-memory stand-in for the platform's task-queue service.
type Stub = core.Stub

// NewStub returns a stub with the default queue already created.
func NewStub() *Stub {
	return core.NewStub()
}

// QueueData maps queue name -> task name -> task.
type QueueData = core.QueueData

// Route binds a URL pattern to the handler that serves it.
type Route = core.Route

// RouteTable is an ordered route list; the first matching route wins.
type RouteTable = core.RouteTable

// TaskResult reports one dispatched task execution.
type TaskResult = core.TaskResult

// RunCounts tallies executed tasks per route pattern.
type RunCounts = core.RunCounts

// Harness wires a queue stub to a route table and drives the hosting
// platform's dispatch loop in-process.
type Harness = core.Harness

// NewHarness returns a harness with a fresh stub and no routes.
func NewHarness(t TestReporter) *Harness {
	return core.NewHarness(t)
}

// TestReporter is the minimal interface taskbed needs from test frameworks.
// *testing.T and *testing.B both implement it.
type TestReporter = core.TestReporter

// NewPOSTTask creates a task that will POST params to path as an urlencoded
// form body.
func NewPOSTTask(path string, params url.Values) *Task {
	return core.NewPOSTTask(path, params)
}

// NewGETTask creates a task that will GET path.
func NewGETTask(path string) *Task {
	return core.NewGETTask(path)
}

// ExecuteTask synthesizes the request the hosting platform would deliver for
// task and dispatches it through table.
func ExecuteTask(task *Task, retries int, table RouteTable, host string) (*TaskResult, error) {
	return core.ExecuteTask(task, retries, table, host)
}

// EncodePayload encodes params as a task body, wrapping oversized payloads in
// the compressed form.
func EncodePayload(params url.Values, threshold int) ([]byte, error) {
	return core.EncodePayload(params, threshold)
}

// CompressPayload wraps params in the oversized-payload form regardless of
// their size.
func CompressPayload(params url.Values) (url.Values, error) {
	return core.CompressPayload(params)
}

// DecodePayload returns the parameters carried by a task's body,
// transparently unwrapping the oversized-payload form.
func DecodePayload(task *Task) (url.Values, error) {
	return core.DecodePayload(task)
}
