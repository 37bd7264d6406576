// Package match provides matchers over scheduled tasks for taskbed
// assertions. This package is designed to be dot-imported alongside gomega
// matchers:
//
//	import (
//	    . "github.com/onsi/gomega"
//	    . "github.com/taskbed/taskbed/match"
//	)
//
//	g.Expect(stub.Tasks("default")).To(ContainElement(HavePath("/crunch/run")))
package match

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/akedrou/textdiff"

	"github.com/taskbed/taskbed"
)

// errTypeMismatch is a sentinel error for type assertion failures.
var errTypeMismatch = errors.New("type mismatch")

// Matcher defines the interface for flexible value matching.
// Compatible with gomega.GomegaMatcher via duck typing - any type
// implementing Match and the failure-message methods will work.
type Matcher interface {
	Match(actual any) (success bool, err error)
	FailureMessage(actual any) string
	NegatedFailureMessage(actual any) string
}

// BeAny is a matcher that matches any value.
// Useful when you don't care about a particular task.
//
//nolint:gochecknoglobals // Intentional exported constant-like value
var BeAny Matcher = anyMatcher{}

// HavePath returns a matcher for tasks targeting path, ignoring any query
// string on the task.
func HavePath(path string) Matcher {
	return &havePathMatcher{path: path}
}

// BeOnQueue returns a matcher for tasks scheduled on the named queue.
func BeOnQueue(queue string) Matcher {
	return &beOnQueueMatcher{queue: queue}
}

// HaveParam returns a matcher for tasks whose payload carries key=value. For
// POST tasks the payload is the (possibly compressed) form body; for GET
// tasks it is the query string.
func HaveParam(key, value string) Matcher {
	return &haveParamMatcher{key: key, value: value}
}

// HavePayload returns a matcher for tasks whose full decoded payload equals
// params. Mismatches report a unified diff of the encoded payloads.
func HavePayload(params url.Values) Matcher {
	return &havePayloadMatcher{params: params}
}

// Satisfy returns a matcher that uses a predicate function to check for a
// match. The predicate should return nil if the value matches, or an error
// describing the mismatch if it does not.
func Satisfy[T any](predicate func(T) error) Matcher {
	return &satisfyMatcher[T]{predicate: predicate}
}

// anyMatcher is the implementation of the BeAny matcher.
type anyMatcher struct{}

// FailureMessage returns an empty string since BeAny always matches.
func (anyMatcher) FailureMessage(any) string {
	return ""
}

// Match always returns true - matches any value.
func (anyMatcher) Match(any) (bool, error) {
	return true, nil
}

// NegatedFailureMessage explains a negated BeAny, which never matches.
func (anyMatcher) NegatedFailureMessage(any) string {
	return "expected anything not to match, but BeAny matches everything"
}

type havePathMatcher struct {
	path string
}

func (m *havePathMatcher) FailureMessage(actual any) string {
	return fmt.Sprintf("task %v does not target path %q", actual, m.path)
}

func (m *havePathMatcher) Match(actual any) (bool, error) {
	task, err := toTask(actual)
	if err != nil {
		return false, err
	}

	path, _, _ := strings.Cut(task.Path, "?")

	return path == m.path, nil
}

func (m *havePathMatcher) NegatedFailureMessage(actual any) string {
	return fmt.Sprintf("task %v unexpectedly targets path %q", actual, m.path)
}

type beOnQueueMatcher struct {
	queue string
}

func (m *beOnQueueMatcher) FailureMessage(actual any) string {
	return fmt.Sprintf("task %v is not on queue %q", actual, m.queue)
}

func (m *beOnQueueMatcher) Match(actual any) (bool, error) {
	task, err := toTask(actual)
	if err != nil {
		return false, err
	}

	return task.Queue == m.queue, nil
}

func (m *beOnQueueMatcher) NegatedFailureMessage(actual any) string {
	return fmt.Sprintf("task %v is unexpectedly on queue %q", actual, m.queue)
}

type haveParamMatcher struct {
	key, value string
	lastErr    error
}

func (m *haveParamMatcher) FailureMessage(actual any) string {
	if m.lastErr != nil {
		return fmt.Sprintf("could not decode task payload: %v", m.lastErr)
	}

	return fmt.Sprintf("task %v payload does not carry %s=%s", actual, m.key, m.value)
}

func (m *haveParamMatcher) Match(actual any) (bool, error) {
	task, err := toTask(actual)
	if err != nil {
		return false, err
	}

	params, err := taskParams(task)
	if err != nil {
		m.lastErr = err

		return false, nil
	}

	for _, value := range params[m.key] {
		if value == m.value {
			return true, nil
		}
	}

	return false, nil
}

func (m *haveParamMatcher) NegatedFailureMessage(actual any) string {
	return fmt.Sprintf("task %v payload unexpectedly carries %s=%s", actual, m.key, m.value)
}

type havePayloadMatcher struct {
	params  url.Values
	lastGot url.Values
	lastErr error
}

func (m *havePayloadMatcher) FailureMessage(any) string {
	if m.lastErr != nil {
		return fmt.Sprintf("could not decode task payload: %v", m.lastErr)
	}

	return "task payload mismatch:\n" + textdiff.Unified(
		"payload (want)", "payload (got)",
		m.params.Encode()+"\n", m.lastGot.Encode()+"\n")
}

func (m *havePayloadMatcher) Match(actual any) (bool, error) {
	task, err := toTask(actual)
	if err != nil {
		return false, err
	}

	params, err := taskParams(task)
	if err != nil {
		m.lastErr = err

		return false, nil
	}

	m.lastGot = params

	return params.Encode() == m.params.Encode(), nil
}

func (m *havePayloadMatcher) NegatedFailureMessage(any) string {
	return "task payload unexpectedly equals " + m.params.Encode()
}

type satisfyMatcher[T any] struct {
	predicate func(T) error
	lastErr   error
}

func (m *satisfyMatcher[T]) FailureMessage(actual any) string {
	if m.lastErr != nil {
		return fmt.Sprintf("value %v does not satisfy predicate: %v", actual, m.lastErr)
	}

	return fmt.Sprintf("value %v does not satisfy predicate", actual)
}

func (m *satisfyMatcher[T]) Match(actual any) (bool, error) {
	val, ok := actual.(T)

	if !ok {
		return false, fmt.Errorf("%w: expected %T, got %T", errTypeMismatch, *new(T), actual)
	}

	m.lastErr = m.predicate(val)

	return m.lastErr == nil, nil
}

func (m *satisfyMatcher[T]) NegatedFailureMessage(actual any) string {
	return fmt.Sprintf("value %v unexpectedly satisfies predicate", actual)
}

// taskParams returns a task's parameters: the decoded body for POST tasks,
// the query string for GET tasks.
func taskParams(task *taskbed.Task) (url.Values, error) {
	if task.Method == http.MethodPost {
		params, err := taskbed.DecodePayload(task)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", task.Name, err)
		}

		return params, nil
	}

	parsed, err := url.Parse(task.Path)
	if err != nil {
		return nil, fmt.Errorf("task %q url: %w", task.Name, err)
	}

	return parsed.Query(), nil
}

// toTask asserts the matched value is a task.
func toTask(actual any) (*taskbed.Task, error) {
	task, ok := actual.(*taskbed.Task)
	if !ok {
		return nil, fmt.Errorf("%w: expected *taskbed.Task, got %T", errTypeMismatch, actual)
	}

	return task, nil
}
