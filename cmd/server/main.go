package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jvidalg/albasort/internal/api"
	"github.com/jvidalg/albasort/internal/config"
	"github.com/jvidalg/albasort/internal/extract"
	"github.com/jvidalg/albasort/internal/pipeline"
	"github.com/jvidalg/albasort/internal/rules"
	"github.com/jvidalg/albasort/internal/watch"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rulesStore := rules.NewStore(cfg.RulesPath, log)
	extractor := extract.NewExtractor(extract.Config{
		Tesseract:         cfg.TesseractPath,
		Pdftoppm:          cfg.PdftoppmPath,
		Pdftotext:         cfg.PdftotextPath,
		Lang:              cfg.OCRLang,
		DPI:               cfg.OCRDPI,
		OCREnabled:        cfg.OCREnabled,
		PdftotextFallback: cfg.PdftotextFallback,
		MinTextLen:        cfg.MinTextLen,
	}, log)

	events := make(chan pipeline.Event, 256)
	recorder := pipeline.NewRecorder(cfg.EventLogPath, log)
	go recorder.Run(events)

	worker := pipeline.NewWorker(rulesStore, extractor, log, cfg.OutputDir, cfg.TempDir, events)
	orch := pipeline.NewOrchestrator(pipeline.NewJobStore(cfg.JobTTL), worker, log, cfg.MaxQueueSize, events)
	orch.Start()

	if cfg.WatchInput {
		if err := os.MkdirAll(cfg.InputDir, 0o755); err != nil {
			log.Error("input folder unavailable", "dir", cfg.InputDir, "error", err)
			os.Exit(1)
		}
		watcher, err := watch.New(watch.Config{
			Dir:         cfg.InputDir,
			OCR:         cfg.OCREnabled,
			InitialScan: true,
		}, func(path string, split, ocr bool) error {
			_, err := orch.Submit(path, split, ocr)
			return err
		}, log)
		if err != nil {
			log.Error("failed to start input watcher", "dir", cfg.InputDir, "error", err)
			os.Exit(1)
		}
		go watcher.Run(ctx)
		log.Info("watching input folder", "dir", cfg.InputDir)
	}

	srv := api.NewServer(orch, rulesStore, extractor, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting albasort", "port", cfg.Port, "rules", cfg.RulesPath, "output", cfg.OutputDir)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	// Graceful shutdown: stop taking requests, drain the job queue,
	// flush the event log.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	orch.Stop(shutdownCtx)
	recorder.Wait()
}
