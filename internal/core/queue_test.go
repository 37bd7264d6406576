package core_test

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/taskbed/taskbed/internal/core"
)

// TestStub_DefaultQueueExists verifies a fresh stub accepts tasks without any
// queue setup.
func TestStub_DefaultQueueExists(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := core.NewStub()

	err := stub.Add(core.NewGETTask("/work"))

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(stub.Queues()).To(Equal([]string{core.DefaultQueue}))
	g.Expect(stub.Tasks(core.DefaultQueue)).To(HaveLen(1))
}

// TestStub_AddAssignsName verifies unnamed tasks get unique generated names,
// readable off the task after Add.
func TestStub_AddAssignsName(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := core.NewStub()
	first := core.NewGETTask("/work")
	second := core.NewGETTask("/work")

	g.Expect(stub.Add(first)).To(Succeed())
	g.Expect(stub.Add(second)).To(Succeed())

	g.Expect(first.Name).NotTo(BeEmpty())
	g.Expect(second.Name).NotTo(Equal(first.Name))
}

// TestStub_AddUnknownQueue verifies scheduling against a queue that was never
// created fails.
func TestStub_AddUnknownQueue(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := core.NewStub()
	task := core.NewGETTask("/work")
	task.Queue = "nope"

	err := stub.Add(task)

	g.Expect(err).To(MatchError(core.ErrUnknownQueue))
}

// TestStub_AddValidation verifies relative paths and odd methods are
// rejected.
func TestStub_AddValidation(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := core.NewStub()

	relative := core.NewGETTask("work")
	g.Expect(stub.Add(relative)).To(MatchError(core.ErrBadTask))

	deleted := core.NewGETTask("/work")
	deleted.Method = "DELETE"
	g.Expect(stub.Add(deleted)).To(MatchError(core.ErrBadTask))
}

// TestStub_AddRejectsUnparsablePath verifies a path the URL parser rejects
// never makes it onto a queue, so draining cannot trip over it later.
func TestStub_AddRejectsUnparsablePath(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := core.NewStub()

	err := stub.Add(core.NewGETTask("/a\x01b"))

	g.Expect(err).To(MatchError(core.ErrBadTask))
	g.Expect(stub.Tasks(core.DefaultQueue)).To(BeEmpty())
}

// TestStub_DuplicateNames verifies a task name can be used once per queue,
// whether it is still scheduled or already tombstoned.
func TestStub_DuplicateNames(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := core.NewStub()
	task := core.NewGETTask("/work")
	task.Name = "once"

	g.Expect(stub.Add(task)).To(Succeed())
	g.Expect(stub.Add(task.Clone())).To(MatchError(core.ErrDuplicateTask))

	stub.Flush(core.DefaultQueue)
	stub.Tombstone(task)

	g.Expect(stub.Add(task.Clone())).To(MatchError(core.ErrDuplicateTask))
}

// TestStub_TasksOrderedByETA verifies Tasks returns ETA order with insertion
// order breaking ties.
func TestStub_TasksOrderedByETA(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := core.NewStub()
	base := time.Now()

	late := core.NewGETTask("/late")
	late.ETA = base.Add(time.Hour)
	early := core.NewGETTask("/early")
	early.ETA = base
	tied := core.NewGETTask("/tied")
	tied.ETA = base

	g.Expect(stub.Add(late)).To(Succeed())
	g.Expect(stub.Add(early)).To(Succeed())
	g.Expect(stub.Add(tied)).To(Succeed())

	var paths []string
	for _, task := range stub.Tasks(core.DefaultQueue) {
		paths = append(paths, task.Path)
	}

	g.Expect(paths).To(Equal([]string{"/early", "/tied", "/late"}))
}

// TestStub_TasksReturnsCopies verifies callers cannot reach into the stub's
// scheduled state through the returned tasks.
func TestStub_TasksReturnsCopies(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := core.NewStub()
	g.Expect(stub.Add(core.NewGETTask("/work"))).To(Succeed())

	stub.Tasks(core.DefaultQueue)[0].Path = "/mutated"

	g.Expect(stub.Tasks(core.DefaultQueue)[0].Path).To(Equal("/work"))
}

// TestStub_ScheduledAndTombstoned verifies the inspection views reflect a
// task's life cycle.
func TestStub_ScheduledAndTombstoned(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := core.NewStub()
	stub.CreateQueue("crunch")

	task := core.NewGETTask("/work")
	task.Queue = "crunch"
	task.Name = "shard-1"
	g.Expect(stub.Add(task)).To(Succeed())

	scheduled := stub.GetScheduledTasks()
	g.Expect(scheduled["crunch"]).To(HaveKey("shard-1"))
	g.Expect(stub.GetTombstonedTasks()["crunch"]).To(BeEmpty())

	stub.Flush("crunch")
	stub.Tombstone(task)

	g.Expect(stub.GetScheduledTasks()["crunch"]).To(BeEmpty())
	g.Expect(stub.GetTombstonedTasks()["crunch"]).To(HaveKey("shard-1"))
}

// TestStub_ResetTasks verifies reset clears tasks and tombstones but keeps
// the queues.
func TestStub_ResetTasks(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := core.NewStub()
	stub.CreateQueue("crunch")

	task := core.NewGETTask("/work")
	task.Name = "once"
	g.Expect(stub.Add(task)).To(Succeed())
	stub.Tombstone(task)

	stub.ResetTasks()

	g.Expect(stub.Tasks(core.DefaultQueue)).To(BeEmpty())
	g.Expect(stub.Queues()).To(ConsistOf(core.DefaultQueue, "crunch"))

	// The tombstone is gone, so the name is free again.
	again := core.NewGETTask("/work")
	again.Name = "once"
	g.Expect(stub.Add(again)).To(Succeed())
}
