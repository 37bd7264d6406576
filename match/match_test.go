package match_test

import (
	"errors"
	"fmt"
	"net/url"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/taskbed/taskbed"
	"github.com/taskbed/taskbed/match"
)

// TestHavePath matches on the path with any query stripped, and composes
// with gomega collection matchers.
func TestHavePath(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	stub := taskbed.NewStub()
	g.Expect(stub.Add(taskbed.NewGETTask("/poll?round=1"))).To(Succeed())

	tasks := stub.Tasks(taskbed.DefaultQueue)

	g.Expect(tasks).To(ContainElement(match.HavePath("/poll")))
	g.Expect(tasks).NotTo(ContainElement(match.HavePath("/poll?round=1")))
}

// TestBeOnQueue matches the task's queue assignment.
func TestBeOnQueue(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	task := taskbed.NewGETTask("/work")
	task.Queue = "crunch"

	g.Expect(task).To(match.BeOnQueue("crunch"))
	g.Expect(task).NotTo(match.BeOnQueue(taskbed.DefaultQueue))
}

// TestHaveParam reads POST bodies and GET query strings alike.
func TestHaveParam(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	post := taskbed.NewPOSTTask("/work", url.Values{"shard": {"3"}})
	get := taskbed.NewGETTask("/work?shard=4")

	g.Expect(post).To(match.HaveParam("shard", "3"))
	g.Expect(get).To(match.HaveParam("shard", "4"))
	g.Expect(post).NotTo(match.HaveParam("shard", "4"))
}

// TestHaveParam_CompressedPayload verifies matching sees through the
// oversized-payload wrapping.
func TestHaveParam_CompressedPayload(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	wrapped, err := taskbed.CompressPayload(url.Values{"cursor": {"zz"}})
	g.Expect(err).NotTo(HaveOccurred())

	task := taskbed.NewPOSTTask("/work", wrapped)

	g.Expect(task).To(match.HaveParam("cursor", "zz"))
}

// TestHavePayload_FailureShowsDiff verifies a payload mismatch renders a
// unified diff.
func TestHavePayload_FailureShowsDiff(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	matcher := match.HavePayload(url.Values{"shard": {"1"}})
	task := taskbed.NewPOSTTask("/work", url.Values{"shard": {"2"}})

	ok, err := matcher.Match(task)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ok).To(BeFalse())

	message := matcher.FailureMessage(task)
	g.Expect(message).To(ContainSubstring("-shard=1"))
	g.Expect(message).To(ContainSubstring("+shard=2"))
}

// TestSatisfy applies a typed predicate.
func TestSatisfy(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	small := match.Satisfy(func(n int) error {
		if n >= 10 {
			return fmt.Errorf("%d is too big", n)
		}

		return nil
	})

	g.Expect(3).To(small)
	g.Expect(30).NotTo(small)

	_, err := small.Match("not an int")
	g.Expect(err).To(MatchError(ContainSubstring("type mismatch")))
}

// TestToTaskTypeMismatch verifies task matchers refuse non-task values
// instead of silently failing.
func TestToTaskTypeMismatch(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := match.HavePath("/work").Match(42)

	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Unwrap(err)).NotTo(BeNil())
}
