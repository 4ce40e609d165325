package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Submit when the job queue is at capacity.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned by Submit after Stop has been called.
var ErrStopped = errors.New("pipeline is stopped")

// Orchestrator owns the job queue, the job registry and the single
// worker goroutine. Jobs run one at a time in submission order.
type Orchestrator struct {
	store  *JobStore
	worker *Worker
	log    *slog.Logger

	queue  chan *Job
	events chan Event

	mu      sync.Mutex
	stopped bool

	cancel     context.CancelFunc
	tickerStop chan struct{}
	wg         sync.WaitGroup
}

func NewOrchestrator(store *JobStore, worker *Worker, log *slog.Logger, queueSize int, events chan Event) *Orchestrator {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Orchestrator{
		store:  store,
		worker: worker,
		log:    log,
		queue:  make(chan *Job, queueSize),
		events: events,
		cancel: func() {}, // replaced by Start
	}
}

// Start launches the worker loop and the job-store cleanup ticker.
func (o *Orchestrator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.tickerStop = make(chan struct{})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for job := range o.queue {
			o.worker.Process(ctx, job)
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-o.tickerStop:
				return
			case <-ticker.C:
				o.store.Cleanup()
			}
		}
	}()
}

// Submit queues a batch file for processing. The job is registered
// before it is queued so GetJob can find it immediately.
func (o *Orchestrator) Submit(path string, split, ocr bool) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Path:      path,
		Filename:  filepath.Base(path),
		Split:     split,
		OCR:       ocr,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// The stopped check and the enqueue must sit under the same lock
	// Stop takes before closing the queue, or the send below could hit
	// a closed channel.
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return nil, ErrStopped
	}
	o.store.Put(job)

	select {
	case o.queue <- job:
		o.log.Info("job queued", "job_id", job.ID, "file", job.Filename, "split", split, "ocr", ocr)
		return job, nil
	default:
		job.SetStatus(StatusFailed, "rejected")
		return nil, ErrQueueFull
	}
}

// GetJob returns the job with the given ID, or nil.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.store.Get(id)
}

// QueueDepth reports how many jobs are waiting.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stop drains the queue: already-queued jobs finish (unless ctx runs
// out, which cancels the in-flight job), then the event channel is
// closed so the recorder can flush.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	if o.tickerStop != nil {
		close(o.tickerStop)
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		// Deadline hit: abort the in-flight job.
		o.cancel()
		<-done
	case <-done:
		o.cancel()
	}

	if o.events != nil {
		close(o.events)
	}
}
