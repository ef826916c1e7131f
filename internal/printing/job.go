package printing

import (
	"sync"
	"time"
)

// JobState is the orchestrator's view of a spooled job. Sub-states of
// processing reported by the spooler are not distinguished.
type JobState string

const (
	JobStateSubmitted  JobState = "submitted"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateCanceled   JobState = "canceled"
	JobStateAborted    JobState = "aborted"
)

// Terminal reports whether no further transitions are expected.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateCanceled, JobStateAborted:
		return true
	}
	return false
}

// Spooler protocol job-state enum values.
const (
	ippJobCanceled  = 7
	ippJobAborted   = 8
	ippJobCompleted = 9
)

func jobStateFromCode(code int) JobState {
	switch code {
	case ippJobCanceled:
		return JobStateCanceled
	case ippJobAborted:
		return JobStateAborted
	case ippJobCompleted:
		return JobStateCompleted
	default:
		// Pending, held, stopped and processing all collapse into one
		// non-terminal state.
		return JobStateProcessing
	}
}

// PrintJob is one submission to the spooler. Jobs submitted through the
// command-line fallback have no ID and are not tracked.
type PrintJob struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	SourceFile  string    `json:"source_file"`
	Printer     string    `json:"printer"`
	SubmittedAt time.Time `json:"submitted_at"`
	State       JobState  `json:"state"`
}

// JobRegistry is the ephemeral job history served by the control API. It
// holds the most recent jobs up to a fixed capacity; history is lost on
// restart, matching the no-durable-ledger design.
type JobRegistry struct {
	mu       sync.RWMutex
	jobs     map[int]*PrintJob
	order    []int
	capacity int
}

func NewJobRegistry(capacity int) *JobRegistry {
	if capacity < 1 {
		capacity = 1
	}
	return &JobRegistry{
		jobs:     make(map[int]*PrintJob),
		capacity: capacity,
	}
}

func (r *JobRegistry) Add(job PrintJob) {
	if job.ID == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; !exists {
		r.order = append(r.order, job.ID)
	}
	r.jobs[job.ID] = &job

	for len(r.order) > r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.jobs, oldest)
	}
}

func (r *JobRegistry) SetState(id int, state JobState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		job.State = state
	}
}

func (r *JobRegistry) Get(id int) (PrintJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return PrintJob{}, false
	}
	return *job, true
}

// List returns tracked jobs in submission order.
func (r *JobRegistry) List() []PrintJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]PrintJob, 0, len(r.order))
	for _, id := range r.order {
		if job, ok := r.jobs[id]; ok {
			jobs = append(jobs, *job)
		}
	}
	return jobs
}
