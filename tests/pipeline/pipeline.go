// Package pipeline is a miniature sharded batch job used to exercise taskbed
// end to end. The work itself is trivial; what matters is the task topology:
// a start task fans out one task per shard, and each shard task processes a
// fixed-size slice of its input and re-enqueues itself until its cursor runs
// off the end.
package pipeline

//go:generate tbgen .

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/julienschmidt/httprouter"

	"github.com/taskbed/taskbed"
)

// SliceSize is how many items one shard task processes per execution.
const SliceSize = 3

// Job holds the input and progress of one pipeline run.
type Job struct {
	harness *taskbed.Harness

	mu        sync.Mutex
	shards    [][]string
	processed map[int][]string
}

// Start wires a job onto harness: the generated route table, the admin
// router, and the kickoff task.
func Start(harness *taskbed.Harness, shards [][]string) (*Job, error) {
	job := &Job{
		harness:   harness,
		shards:    shards,
		processed: map[int][]string{},
	}
	activate(job)

	harness.Routes = append(harness.Routes, TaskbedRoutes()...)
	harness.Handle("/admin/.*", job.AdminRouter())

	kickoff := taskbed.NewPOSTTask("/pipeline/start", url.Values{
		"shards": {strconv.Itoa(len(shards))},
	})

	err := harness.Add(kickoff)
	if err != nil {
		return nil, fmt.Errorf("scheduling kickoff: %w", err)
	}

	return job, nil
}

// HandleStart fans out one slice task per shard.
//
// taskbed:route /pipeline/start
func HandleStart(w http.ResponseWriter, r *http.Request) {
	job := active()

	count, err := strconv.Atoi(r.FormValue("shards"))
	if err != nil {
		http.Error(w, "bad shards param: "+err.Error(), http.StatusBadRequest)

		return
	}

	for shard := range count {
		err := job.enqueueSlice(shard, 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

// HandleShard processes one slice and re-enqueues the continuation.
//
// taskbed:route /pipeline/shard
func HandleShard(w http.ResponseWriter, r *http.Request) {
	job := active()

	shard, err := strconv.Atoi(r.FormValue("shard"))
	if err != nil {
		http.Error(w, "bad shard param: "+err.Error(), http.StatusBadRequest)

		return
	}

	cursor, err := strconv.Atoi(r.FormValue("cursor"))
	if err != nil {
		http.Error(w, "bad cursor param: "+err.Error(), http.StatusBadRequest)

		return
	}

	more, err := job.processSlice(shard, cursor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	if more {
		err := job.enqueueSlice(shard, cursor+SliceSize)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

// AdminRouter exposes read-only progress endpoints, mounted behind the
// /admin/.* route.
func (j *Job) AdminRouter() http.Handler {
	router := httprouter.New()
	router.GET("/admin/shard/:id", j.handleShardProgress)

	return router
}

// Done reports whether every input item has been processed.
func (j *Job) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	for shard, items := range j.shards {
		if len(j.processed[shard]) != len(items) {
			return false
		}
	}

	return true
}

// Processed returns the items processed so far for one shard, in order.
func (j *Job) Processed(shard int) []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.processed[shard]...)
}

// enqueueSlice schedules the slice task starting at cursor for shard.
func (j *Job) enqueueSlice(shard, cursor int) error {
	task := taskbed.NewPOSTTask("/pipeline/shard", url.Values{
		"shard":  {strconv.Itoa(shard)},
		"cursor": {strconv.Itoa(cursor)},
	})

	err := j.harness.Add(task)
	if err != nil {
		return fmt.Errorf("scheduling shard %d cursor %d: %w", shard, cursor, err)
	}

	return nil
}

// handleShardProgress reports one shard's progress as JSON.
func (j *Job) handleShardProgress(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	shard, err := strconv.Atoi(params.ByName("id"))
	if err != nil {
		http.Error(w, "bad shard id: "+err.Error(), http.StatusBadRequest)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(map[string]any{
		"shard":     shard,
		"processed": len(j.Processed(shard)),
	})
}

// processSlice records the slice's items as processed and reports whether
// more remain.
func (j *Job) processSlice(shard, cursor int) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if shard < 0 || shard >= len(j.shards) {
		return false, fmt.Errorf("%w: shard %d of %d", errNoSuchShard, shard, len(j.shards))
	}

	items := j.shards[shard]

	end := min(cursor+SliceSize, len(items))
	j.processed[shard] = append(j.processed[shard], items[cursor:end]...)

	return end < len(items), nil
}

// unexported variables.
var (
	errNoSuchShard = errors.New("no such shard")

	//nolint:gochecknoglobals // One active job at a time keeps the generated handlers free funcs
	activeMu sync.Mutex
	//nolint:gochecknoglobals // See activeMu
	activeJob *Job
)

// active returns the job the package handlers operate on.
func active() *Job {
	activeMu.Lock()
	defer activeMu.Unlock()

	return activeJob
}

// activate installs job as the one the package handlers operate on.
func activate(job *Job) {
	activeMu.Lock()
	defer activeMu.Unlock()

	activeJob = job
}
