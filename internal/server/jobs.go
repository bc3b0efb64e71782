package server

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/copyleftdev/stochopt/internal/store"
)

// job is an optimization run owned by this process.
type job struct {
	record *store.RunRecord
	cancel context.CancelFunc
	calls  atomic.Int64
}

// jobManager tracks the runs started by this process. Records are only
// mutated under mu.
type jobManager struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

func newJobManager() *jobManager {
	return &jobManager{jobs: make(map[string]*job)}
}

// create registers a queued job.
func (jm *jobManager) create(spec store.RunSpec, cancel context.CancelFunc) *job {
	j := &job{
		record: store.NewRunRecord(uuid.New().String(), spec, time.Now().UTC()),
		cancel: cancel,
	}

	jm.mu.Lock()
	jm.jobs[j.record.ID] = j
	jm.mu.Unlock()
	return j
}

func (jm *jobManager) get(id string) (*job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	j, ok := jm.jobs[id]
	return j, ok
}

// update applies fn to the job's record under the lock.
func (jm *jobManager) update(j *job, fn func(r *store.RunRecord)) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	fn(j.record)
}

// snapshot returns a copy of the job's record that is safe to encode.
func (jm *jobManager) snapshot(j *job) store.RunRecord {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	r := *j.record
	if !r.Done() {
		r.Evaluations = int(j.calls.Load())
	}
	return r
}

// list returns summaries of all jobs, newest first.
func (jm *jobManager) list() []store.RunInfo {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	infos := make([]store.RunInfo, 0, len(jm.jobs))
	for _, j := range jm.jobs {
		infos = append(infos, j.record.Info())
	}
	sort.Slice(infos, func(a, b int) bool {
		return infos[a].CreatedAt.After(infos[b].CreatedAt)
	})
	return infos
}

// remove forgets a job.
func (jm *jobManager) remove(j *job) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.jobs, j.record.ID)
}

// prune forgets the oldest finished jobs until at most keep remain.
// Queued and running jobs are never pruned.
func (jm *jobManager) prune(keep int) int {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	var finished []*job
	for _, j := range jm.jobs {
		if j.record.Done() {
			finished = append(finished, j)
		}
	}
	if len(finished) <= keep {
		return 0
	}
	sort.Slice(finished, func(a, b int) bool {
		return finished[a].record.CreatedAt.Before(finished[b].record.CreatedAt)
	})
	drop := finished[:len(finished)-keep]
	for _, j := range drop {
		delete(jm.jobs, j.record.ID)
	}
	return len(drop)
}

// all returns every job.
func (jm *jobManager) all() []*job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*job, 0, len(jm.jobs))
	for _, j := range jm.jobs {
		jobs = append(jobs, j)
	}
	return jobs
}
