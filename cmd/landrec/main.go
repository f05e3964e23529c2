package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/landrec/api"
	"github.com/use-agent/landrec/config"
	"github.com/use-agent/landrec/export"
	"github.com/use-agent/landrec/models"
	"github.com/use-agent/landrec/pipeline"
	"github.com/use-agent/landrec/scraper"
	"github.com/use-agent/landrec/status"
	store "github.com/use-agent/landrec/storage"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("landrec starting",
		"portal", cfg.Portal.EntryURL,
		"startDate", cfg.Job.StartDate,
		"endDate", cfg.Job.EndDate,
		"headless", cfg.Browser.Headless,
	)

	if cfg.Job.StartDate == "" || cfg.Job.EndDate == "" {
		slog.Error("LANDREC_START_DATE and LANDREC_END_DATE are required (MM/DD/YYYY)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := time.Now().UTC().Format("20060102-150405")

	// ── 3. Status sinks and live tracker ────────────────────────────
	tracker := status.NewTracker()
	sinks := []status.Sink{status.LogSink{}}
	if cfg.Status.WebhookURL != "" {
		sinks = append(sinks, &status.WebhookSink{
			URL:    cfg.Status.WebhookURL,
			Secret: cfg.Status.WebhookSecret,
			RunID:  runID,
		})
	}
	statusSink := status.Multi(sinks...)

	// ── 3b. Optional local status server ───────────────────────────
	if cfg.Status.Addr != "" {
		router := api.NewRouter(tracker, cfg.Status.Mode, time.Now())
		srv := &http.Server{Addr: cfg.Status.Addr, Handler: router}
		go func() {
			slog.Info("status server listening", "addr", cfg.Status.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("status server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// ── 4. Storage: documents, export artifact, checkpoint ─────────
	var bucket *store.GCSBucket
	if cfg.Cloud.GCSBucket != "" {
		b, err := store.NewGCSBucket(ctx, cfg.Cloud.GCSBucket, time.Now())
		if err != nil {
			fatal(statusSink, models.NewPipelineError(models.ErrCodeFatalInit, "object store unavailable", err))
		}
		bucket = b
		defer bucket.Close()
		slog.Info("cloud context detected", "bucket", cfg.Cloud.GCSBucket)
	}
	docStore := store.NewDocumentStore(cfg.Job.OutputDir, bucket)

	var exporter pipeline.Exporter
	if bucket != nil {
		exporter = store.NewExportUploader(bucket, cfg.Export.Path)
	}

	var checkpoint pipeline.CheckpointReader
	switch {
	case cfg.Cloud.FirestoreProject != "":
		checkpoint = store.FirestoreCheckpoint{
			Project:    cfg.Cloud.FirestoreProject,
			Collection: cfg.Cloud.FirestoreCollection,
			Doc:        cfg.Cloud.FirestoreDoc,
		}
	case cfg.Job.CheckpointFile != "":
		checkpoint = store.FileCheckpoint{Path: cfg.Job.CheckpointFile}
	}

	// ── 5. Session: browser, context, single page ──────────────────
	session, err := scraper.Start(cfg.Browser)
	if err != nil {
		fatal(statusSink, err)
	}
	defer session.Stop()

	// ── 6. Pipeline wiring ──────────────────────────────────────────
	capturer := scraper.NewCapturer(session, cfg.Portal, docStore)
	sink := export.NewWriter(cfg.Export.Path)

	p := pipeline.New(pipeline.Deps{
		Search:     scraper.NewSearchController(session, cfg.Portal),
		Rows:       scraper.NewRowExtractor(session, cfg.Portal, capturer),
		Sink:       sink,
		Exporter:   exporter,
		Checkpoint: checkpoint,
		Status:     statusSink,
		Tracker:    tracker,
	}, pipeline.Options{
		Range: models.SearchRange{
			StartDate: cfg.Job.StartDate,
			EndDate:   cfg.Job.EndDate,
		},
		SearchAttempts: cfg.Portal.SearchAttempts,
		SearchBackoff:  cfg.Portal.SearchBackoff,
		MaxRows:        cfg.Job.MaxRows,
		RowsPerSecond:  cfg.Job.RowsPerSecond,
	})

	// ── 7. Run ──────────────────────────────────────────────────────
	outcome, err := p.Run(ctx)
	if err != nil {
		slog.Error("run failed",
			"error", err,
			"attempted", outcome.TotalAttempted,
			"succeeded", outcome.Succeeded,
			"failed", outcome.Failed,
		)
		os.Exit(1)
	}
	slog.Info("run finished",
		"attempted", outcome.TotalAttempted,
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
		"export", sink.Path(),
		"records", sink.Count(),
	)
}

// fatal emits the terminal status for failures that happen before the
// pipeline owns reporting, then exits.
func fatal(sink status.Sink, err error) {
	sink.Terminal(fmt.Sprintf("fatal: %v", err))
	slog.Error("startup failed", "error", err)
	os.Exit(1)
}

// initLogger configures slog based on the log config.
func initLogger(cfg config.Log) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
