package pipeline

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"
)

// EventType identifies pipeline progress events.
type EventType string

const (
	EventBatchStarted   EventType = "batch_started"
	EventFragmentCut    EventType = "fragment_cut"
	EventDocumentPlaced EventType = "document_placed"
	EventBatchFinished  EventType = "batch_finished"
)

// Event is emitted by the worker on its event channel. The worker
// never touches a presentation surface directly; whoever owns the
// channel decides what to do with progress.
type Event struct {
	Type       EventType `json:"type"`
	JobID      string    `json:"job_id"`
	Time       time.Time `json:"time"`
	Provider   string    `json:"provider,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	FinalPath  string    `json:"final_path,omitempty"`
	Pages      []int     `json:"pages,omitempty"`
	Note       string    `json:"note,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Recorder drains the event channel and appends each event to a JSONL
// log, the durable record of every processed document.
type Recorder struct {
	path string
	log  *slog.Logger
	done chan struct{}
}

func NewRecorder(path string, log *slog.Logger) *Recorder {
	return &Recorder{path: path, log: log, done: make(chan struct{})}
}

// Run consumes events until the channel closes. Call in a goroutine;
// Wait blocks until the channel has drained.
func (r *Recorder) Run(events <-chan Event) {
	defer close(r.done)

	var enc *json.Encoder
	var f *os.File
	if r.path != "" {
		var err error
		f, err = os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			r.log.Warn("event log unavailable, events go to slog only", "path", r.path, "error", err)
		} else {
			defer f.Close()
			enc = json.NewEncoder(f)
		}
	}

	for ev := range events {
		r.log.Info("pipeline event",
			"type", ev.Type,
			"job_id", ev.JobID,
			"provider", ev.Provider,
			"final_path", ev.FinalPath,
		)
		if enc != nil {
			if err := enc.Encode(ev); err != nil {
				r.log.Warn("event log write failed", "error", err)
			}
		}
	}
}

// Wait blocks until Run has finished draining.
func (r *Recorder) Wait() {
	<-r.done
}
