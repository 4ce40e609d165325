package pipeline

import (
	"sync"
	"time"

	"github.com/jvidalg/albasort/internal/classify"
)

// JobStatus represents the state of a batch job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusSegmenting  JobStatus = "segmenting"
	StatusClassifying JobStatus = "classifying"
	StatusCompleted   JobStatus = "completed"
	StatusPartial     JobStatus = "partial"
	StatusFailed      JobStatus = "failed"
)

// DocumentOutcome records what happened to one output document.
type DocumentOutcome struct {
	Provider   string              `json:"provider,omitempty"`
	Identifier string              `json:"identifier,omitempty"`
	Confidence classify.Confidence `json:"confidence"`
	FinalPath  string              `json:"final_path,omitempty"`
	Pages      []int               `json:"pages,omitempty"`
	Note       string              `json:"note,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// Job tracks the state of one batch run.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Path     string `json:"path"`
	Filename string `json:"filename"`

	// Split requests guillotine segmentation; false routes the file
	// through whole-file classification only.
	Split bool `json:"split"`
	// OCR enables the optical fallback during the page scan of this
	// batch. Fragment and single-file extraction is always native
	// first, with the extractor's own fallback for scanned pages.
	OCR bool `json:"ocr"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Pages     int               `json:"pages"`
	Fragments int               `json:"fragments"`
	Outcomes  []DocumentOutcome `json:"outcomes"`
	Warnings  []string          `json:"warnings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddWarning records a batch-level warning.
func (j *Job) AddWarning(w string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Warnings = append(j.Warnings, w)
	j.UpdatedAt = time.Now()
}

// SetCounts records page and fragment totals.
func (j *Job) SetCounts(pages, fragments int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Pages = pages
	j.Fragments = fragments
	j.UpdatedAt = time.Now()
}

// AddOutcome appends one document outcome.
func (j *Job) AddOutcome(o DocumentOutcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outcomes = append(j.Outcomes, o)
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string            `json:"job_id"`
	Filename  string            `json:"filename"`
	Split     bool              `json:"split"`
	OCR       bool              `json:"ocr"`
	Status    JobStatus         `json:"status"`
	Phase     string            `json:"phase"`
	Pages     int               `json:"pages"`
	Fragments int               `json:"fragments"`
	Outcomes  []DocumentOutcome `json:"outcomes"`
	Warnings  []string          `json:"warnings"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	outcomes := make([]DocumentOutcome, len(j.Outcomes))
	copy(outcomes, j.Outcomes)
	warnings := j.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return JobSnapshot{
		ID:        j.ID,
		Filename:  j.Filename,
		Split:     j.Split,
		OCR:       j.OCR,
		Status:    j.Status,
		Phase:     j.Phase,
		Pages:     j.Pages,
		Fragments: j.Fragments,
		Outcomes:  outcomes,
		Warnings:  warnings,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
