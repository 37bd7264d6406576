package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Headers set on every synthesized request, mirroring what the hosting
// platform attaches when it delivers a task.
const (
	HeaderTaskName       = "X-Taskbed-Task-Name"
	HeaderQueueName      = "X-Taskbed-Queue-Name"
	HeaderExecutionCount = "X-Taskbed-Task-Execution-Count"
)

// DefaultHost is the host synthesized requests appear to target.
const DefaultHost = "app.example.test"

// Dispatch errors.
var (
	ErrNoRoute    = errors.New("no route matches task")
	ErrTaskFailed = errors.New("task handler failed")
)

// Route binds a URL pattern to the handler that serves it. Pattern is a
// regexp matched against the task URL, anchored at the start and terminated
// by end-of-string or the query separator.
type Route struct {
	Pattern string
	Handler http.Handler
}

// RouteTable is an ordered route list; the first matching route wins.
type RouteTable []Route

// Resolve returns the first route whose pattern matches taskURL.
func (rt RouteTable) Resolve(taskURL string) (Route, error) {
	for _, route := range rt {
		matcher, err := regexp.Compile("^" + route.Pattern + `($|\?)`)
		if err != nil {
			return Route{}, fmt.Errorf("route pattern %q: %w", route.Pattern, err)
		}

		if matcher.MatchString(taskURL) {
			return route, nil
		}
	}

	return Route{}, fmt.Errorf("%w: %q", ErrNoRoute, taskURL)
}

// TaskResult reports one dispatched task execution.
type TaskResult struct {
	Route  string // pattern of the route that served the task
	Status int
	Header http.Header
	Body   []byte
}

// ExecuteTask synthesizes the request the hosting platform would deliver for
// task and dispatches it through table. retries becomes the execution-count
// header, as it would on the real platform.
//
// A task with no matching route or a non-2xx response is an error; on a
// non-2xx response the result is still returned for inspection.
func ExecuteTask(task *Task, retries int, table RouteTable, host string) (*TaskResult, error) {
	task.normalize()

	route, err := table.Resolve(task.Path)
	if err != nil {
		return nil, err
	}

	if host == "" {
		host = DefaultHost
	}

	var body io.Reader
	if task.Method == http.MethodPost {
		body = bytes.NewReader(task.Body)
	}

	// httptest.NewRequest panics on URLs url.Parse rejects; catch that here
	// so a malformed path surfaces as an error.
	taskURL := "http://" + host + task.Path

	_, err = url.Parse(taskURL)
	if err != nil {
		return nil, fmt.Errorf("%w: task %q: %v", ErrBadTask, task.Name, err)
	}

	req := httptest.NewRequest(task.Method, taskURL, body)

	for name, values := range task.Header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	if task.Method == http.MethodPost && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	req.Header.Set(HeaderTaskName, task.Name)
	req.Header.Set(HeaderQueueName, task.Queue)
	req.Header.Set(HeaderExecutionCount, strconv.Itoa(retries))

	recorder := httptest.NewRecorder()
	route.Handler.ServeHTTP(recorder, req)

	result := &TaskResult{
		Route:  route.Pattern,
		Status: recorder.Code,
		Header: recorder.Header(),
		Body:   recorder.Body.Bytes(),
	}

	if recorder.Code < http.StatusOK || recorder.Code >= http.StatusMultipleChoices {
		return result, fmt.Errorf("%w: task %q got %d from route %q: %s",
			ErrTaskFailed, task.Name, recorder.Code, route.Pattern,
			strings.TrimSpace(recorder.Body.String()))
	}

	return result, nil
}
