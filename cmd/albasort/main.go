// Command albasort is the one-shot CLI: it processes a single batch
// file or every supported file in a directory, then exits. The same
// pipeline the server runs, without the HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jvidalg/albasort/internal/extract"
	"github.com/jvidalg/albasort/internal/pipeline"
	"github.com/jvidalg/albasort/internal/rules"
)

func main() {
	var (
		dir     = flag.String("dir", "", "directory of batch files to process")
		file    = flag.String("file", "", "single batch file to process")
		out     = flag.String("out", "output", "output root directory")
		rulesFn = flag.String("rules", "rules.json", "provider rule file")
		ocr     = flag.Bool("ocr", true, "enable optical extraction for scanned pages")
		noSplit = flag.Bool("no-split", false, "treat inputs as single documents, skip segmentation")
		events  = flag.String("events", "", "append pipeline events to this JSONL file")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if (*dir == "") == (*file == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -dir or -file is required")
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var inputs []string
	if *file != "" {
		inputs = append(inputs, *file)
	} else {
		entries, err := os.ReadDir(*dir)
		if err != nil {
			log.Error("cannot read input directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if !e.IsDir() && extract.IsSupported(e.Name()) {
				inputs = append(inputs, filepath.Join(*dir, e.Name()))
			}
		}
		sort.Strings(inputs)
	}
	if len(inputs) == 0 {
		log.Info("nothing to process")
		return
	}

	store := rules.NewStore(*rulesFn, log)
	extractor := extract.NewExtractor(extract.Config{OCREnabled: *ocr}, log)

	evCh := make(chan pipeline.Event, 256)
	recorder := pipeline.NewRecorder(*events, log)
	go recorder.Run(evCh)

	worker := pipeline.NewWorker(store, extractor, log, *out, "", evCh)

	ctx := context.Background()
	exit := 0
	for _, path := range inputs {
		job := &pipeline.Job{
			ID:        uuid.NewString(),
			Path:      path,
			Filename:  filepath.Base(path),
			Split:     !*noSplit,
			OCR:       *ocr,
			Status:    pipeline.StatusQueued,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		worker.Process(ctx, job)

		snap := job.Snapshot()
		fmt.Printf("%s: %s (%d pages, %d documents)\n", snap.Filename, snap.Status, snap.Pages, snap.Fragments)
		for _, o := range snap.Outcomes {
			switch {
			case o.Error != "":
				fmt.Printf("  !! %s: %s\n", o.Provider, o.Error)
				exit = 1
			case o.Provider == "":
				fmt.Printf("  -> %s (%s)\n", o.FinalPath, o.Note)
			default:
				fmt.Printf("  -> %s [%s %s]\n", o.FinalPath, o.Provider, o.Identifier)
			}
		}
	}

	close(evCh)
	recorder.Wait()
	os.Exit(exit)
}
