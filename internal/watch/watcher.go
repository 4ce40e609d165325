// Package watch feeds the pipeline from a drop folder: batches copied
// into the input directory are submitted automatically once the copy
// has settled.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jvidalg/albasort/internal/extract"
)

// SubmitFunc hands a settled file to the pipeline.
type SubmitFunc func(path string, split, ocr bool) error

type Config struct {
	Dir string

	// OCR is passed through to every submitted job.
	OCR bool

	// Debounce is how long a file must stay quiet before submission.
	// A scanner daemon writes a batch in bursts; submitting mid-copy
	// would segment a truncated PDF. Default 2s.
	Debounce time.Duration

	// InitialScan submits files already present in the folder at start.
	InitialScan bool
}

// Watcher turns filesystem events in the input folder into job
// submissions.
type Watcher struct {
	cfg    Config
	submit SubmitFunc
	log    *slog.Logger
	fw     *fsnotify.Watcher

	// One timer per settling file, removed once the file is handed
	// off, so the map stays bounded in a long-running service.
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(cfg Config, submit SubmitFunc, log *slog.Logger) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(cfg.Dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		cfg:    cfg,
		submit: submit,
		log:    log,
		fw:     fw,
		timers: make(map[string]*time.Timer),
	}, nil
}

// Run blocks until ctx is cancelled. Call in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fw.Close()

	if w.cfg.InitialScan {
		w.scanExisting()
	}

	defer func() {
		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !extract.IsSupported(ev.Name) {
				continue
			}
			path := ev.Name
			w.mu.Lock()
			if t, ok := w.timers[path]; ok {
				t.Reset(w.cfg.Debounce)
				w.mu.Unlock()
				continue
			}
			w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
				w.settle(ctx, path)
				w.mu.Lock()
				delete(w.timers, path)
				w.mu.Unlock()
			})
			w.mu.Unlock()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.log.Warn("initial scan failed", "dir", w.cfg.Dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !extract.IsSupported(e.Name()) {
			continue
		}
		path := filepath.Join(w.cfg.Dir, e.Name())
		if err := w.submit(path, true, w.cfg.OCR); err != nil {
			w.log.Warn("initial submit failed", "path", path, "error", err)
		}
	}
}

// settle waits for the file size to hold still, then submits. The
// debounce timer already passed, so this is a short confirmation poll.
func (w *Watcher) settle(ctx context.Context, path string) {
	var last int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			// Removed or renamed away before it settled.
			w.log.Debug("watched file vanished", "path", path)
			return
		}
		if info.Size() == last {
			break
		}
		last = info.Size()
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
	// The pipeline may be shutting down while a debounce timer fires;
	// never submit past cancellation.
	if ctx.Err() != nil {
		return
	}
	if err := w.submit(path, true, w.cfg.OCR); err != nil {
		w.log.Warn("watcher submit failed", "path", path, "error", err)
	} else {
		w.log.Info("batch picked up from input folder", "path", path)
	}
}
