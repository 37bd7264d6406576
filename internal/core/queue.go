package core

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Stub errors.
var (
	ErrUnknownQueue  = errors.New("unknown queue")
	ErrDuplicateTask = errors.New("task name already in use")
	ErrBadTask       = errors.New("invalid task")
)

// QueueData maps queue name -> task name -> task; the shape returned by the
// stub's inspection methods.
type QueueData map[string]map[string]*Task

// Stub is an in-memory stand-in for the platform's task-queue service. It
// holds scheduled tasks per queue and remembers the names of executed tasks
// as tombstones, which can never be reused.
//
// Safe for concurrent use; handlers commonly enqueue follow-up tasks from
// inside a dispatch.
type Stub struct {
	mu         sync.Mutex
	queues     map[string][]*Task
	tombstones map[string]map[string]*Task
}

// NewStub returns a stub with the default queue already created.
func NewStub() *Stub {
	stub := &Stub{
		queues:     map[string][]*Task{},
		tombstones: map[string]map[string]*Task{},
	}
	stub.CreateQueue(DefaultQueue)

	return stub
}

// CreateQueue registers a queue. Creating an existing queue is a no-op.
func (s *Stub) CreateQueue(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queues[name]; ok {
		return
	}

	s.queues[name] = nil
	s.tombstones[name] = map[string]*Task{}
}

// Queues returns the names of all created queues, sorted.
func (s *Stub) Queues() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Add schedules a task. The task is normalized first (generated name, default
// queue, GET method), so callers can read the assigned name back off the
// task. Scheduling against an unknown queue, reusing a name that is scheduled
// or tombstoned, or a malformed path or method is an error.
func (s *Stub) Add(task *Task) error {
	task.normalize()

	err := validateTask(task)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scheduled, ok := s.queues[task.Queue]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, task.Queue)
	}

	if s.nameInUseLocked(task.Queue, task.Name) {
		return fmt.Errorf("%w: %q on queue %q", ErrDuplicateTask, task.Name, task.Queue)
	}

	s.queues[task.Queue] = append(scheduled, task.Clone())

	return nil
}

// Tasks returns copies of the tasks scheduled on queue, ordered by ETA and
// then by insertion. An unknown queue has no tasks.
func (s *Stub) Tasks(queue string) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	scheduled := s.queues[queue]

	tasks := make([]*Task, 0, len(scheduled))
	for _, task := range scheduled {
		tasks = append(tasks, task.Clone())
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].ETA.Before(tasks[j].ETA)
	})

	return tasks
}

// Flush drops all scheduled tasks on queue without executing them.
func (s *Stub) Flush(queue string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queues[queue]; ok {
		s.queues[queue] = nil
	}
}

// Tombstone records a task name as executed so it can never be re-added.
func (s *Stub) Tombstone(task *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tombstones, ok := s.tombstones[task.Queue]
	if !ok {
		return
	}

	tombstones[task.Name] = task.Clone()
}

// GetScheduledTasks returns every scheduled task, keyed by queue and task
// name.
func (s *Stub) GetScheduledTasks() QueueData {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := QueueData{}

	for queue, scheduled := range s.queues {
		data[queue] = map[string]*Task{}
		for _, task := range scheduled {
			data[queue][task.Name] = task.Clone()
		}
	}

	return data
}

// GetTombstonedTasks returns every executed task, keyed by queue and task
// name.
func (s *Stub) GetTombstonedTasks() QueueData {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := QueueData{}

	for queue, tombstones := range s.tombstones {
		data[queue] = map[string]*Task{}
		for name, task := range tombstones {
			data[queue][name] = task.Clone()
		}
	}

	return data
}

// ResetTasks clears every queue and forgets all tombstones. The queues
// themselves survive.
func (s *Stub) ResetTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for queue := range s.queues {
		s.queues[queue] = nil
		s.tombstones[queue] = map[string]*Task{}
	}
}

// nameInUseLocked reports whether name is scheduled or tombstoned on queue.
// Callers must hold s.mu.
func (s *Stub) nameInUseLocked(queue, name string) bool {
	for _, task := range s.queues[queue] {
		if task.Name == name {
			return true
		}
	}

	_, ok := s.tombstones[queue][name]

	return ok
}

// validateTask rejects tasks the platform would refuse to enqueue.
func validateTask(task *Task) error {
	if !strings.HasPrefix(task.Path, "/") {
		return fmt.Errorf("%w: path %q must be absolute", ErrBadTask, task.Path)
	}

	// A path url.Parse rejects would panic request synthesis later.
	_, err := url.ParseRequestURI(task.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadTask, err)
	}

	if task.Method != http.MethodGet && task.Method != http.MethodPost {
		return fmt.Errorf("%w: unsupported method %q", ErrBadTask, task.Method)
	}

	return nil
}
