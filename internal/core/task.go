// Package core provides the internal implementation of taskbed's queue stub,
// dispatcher, and drain loop.
package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultQueue is the queue every new Stub starts with.
const DefaultQueue = "default"

// Task is a single unit of work scheduled against the queue stub. Its fields
// mirror what the hosting platform records for a queued request: the target
// URL, the HTTP method, headers, an urlencoded form body for POST tasks, and
// the earliest time the task may run.
type Task struct {
	Name   string
	Queue  string
	Path   string // URL path, optionally including a query string
	Method string
	Header http.Header
	Body   []byte // urlencoded form data; only meaningful for POST tasks
	ETA    time.Time
}

// NewPOSTTask creates a task that will POST params to path as an urlencoded
// form body.
func NewPOSTTask(path string, params url.Values) *Task {
	return &Task{
		Path:   path,
		Method: http.MethodPost,
		Body:   []byte(params.Encode()),
	}
}

// NewGETTask creates a task that will GET path. Parameters, if any, travel in
// the path's query string.
func NewGETTask(path string) *Task {
	return &Task{
		Path:   path,
		Method: http.MethodGet,
	}
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	clone := *t

	if t.Header != nil {
		clone.Header = t.Header.Clone()
	}

	if t.Body != nil {
		clone.Body = append([]byte(nil), t.Body...)
	}

	return &clone
}

// MarshalJSON renders the task in the platform's queue-dump form: header
// pairs in sorted order and the body base64-encoded.
func (t *Task) MarshalJSON() ([]byte, error) {
	dump := taskJSON{
		Name:   t.Name,
		Queue:  t.Queue,
		URL:    t.Path,
		Method: t.Method,
	}

	names := make([]string, 0, len(t.Header))
	for name := range t.Header {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		for _, value := range t.Header[name] {
			dump.Headers = append(dump.Headers, [2]string{name, value})
		}
	}

	if len(t.Body) > 0 {
		dump.Body = base64.StdEncoding.EncodeToString(t.Body)
	}

	if !t.ETA.IsZero() {
		dump.ETA = t.ETA.Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(dump)
	if err != nil {
		return nil, fmt.Errorf("marshaling task %q: %w", t.Name, err)
	}

	return data, nil
}

// UnmarshalJSON parses a task from the platform's queue-dump form.
func (t *Task) UnmarshalJSON(data []byte) error {
	var dump taskJSON

	err := json.Unmarshal(data, &dump)
	if err != nil {
		return fmt.Errorf("unmarshaling task: %w", err)
	}

	parsed := Task{
		Name:   dump.Name,
		Queue:  dump.Queue,
		Path:   dump.URL,
		Method: dump.Method,
	}

	if len(dump.Headers) > 0 {
		parsed.Header = http.Header{}
		for _, pair := range dump.Headers {
			parsed.Header.Add(pair[0], pair[1])
		}
	}

	if dump.Body != "" {
		body, err := base64.StdEncoding.DecodeString(dump.Body)
		if err != nil {
			return fmt.Errorf("decoding task %q body: %w", dump.Name, err)
		}

		parsed.Body = body
	}

	if dump.ETA != "" {
		eta, err := time.Parse(time.RFC3339Nano, dump.ETA)
		if err != nil {
			return fmt.Errorf("parsing task %q eta: %w", dump.Name, err)
		}

		parsed.ETA = eta
	}

	*t = parsed

	return nil
}

// normalize fills in the defaults the platform would apply on enqueue: a
// generated unique name, the default queue, and the GET method.
func (t *Task) normalize() {
	if t.Name == "" {
		t.Name = "task-" + uuid.NewString()
	}

	if t.Queue == "" {
		t.Queue = DefaultQueue
	}

	if t.Method == "" {
		t.Method = http.MethodGet
	}

	if t.Header == nil {
		t.Header = http.Header{}
	}
}

// taskJSON is the queue-dump wire form of a Task.
type taskJSON struct {
	Name    string      `json:"name"`
	Queue   string      `json:"queue_name"`
	URL     string      `json:"url"`
	Method  string      `json:"method"`
	Headers [][2]string `json:"headers,omitempty"`
	Body    string      `json:"body,omitempty"`
	ETA     string      `json:"eta,omitempty"`
}
