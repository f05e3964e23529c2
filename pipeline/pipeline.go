// Package pipeline sequences one extraction run: session start happens
// outside, then checkpoint adjust → search with retry → row loop → export.
// The orchestrator works against ports so the loop and its failure
// accounting can be exercised without a browser.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/landrec/models"
	"github.com/use-agent/landrec/status"
	"golang.org/x/time/rate"
)

// Searcher submits one search attempt; the pipeline owns the bounded retry.
type Searcher interface {
	Submit(ctx context.Context, r models.SearchRange) error
}

// RowSource enumerates and processes result rows by index.
type RowSource interface {
	Count(ctx context.Context) (int, error)
	Process(ctx context.Context, index int) (*models.RecordEntry, error)
}

// RecordSink receives each record immediately after extraction; this
// streaming push is the durability mechanism against mid-run crashes.
// Close runs on every pipeline exit path and may be called more than once.
type RecordSink interface {
	Push(ctx context.Context, rec *models.RecordEntry) error
	Close() error
}

// Exporter ships the finished export artifact; optional.
type Exporter interface {
	Export(ctx context.Context) error
}

// CheckpointReader reads the externally persisted resume marker; optional.
type CheckpointReader interface {
	Read(ctx context.Context) (*models.Checkpoint, error)
}

// Deps are the pipeline's collaborators. Exporter and Checkpoint may be
// nil; Status and Tracker default when nil.
type Deps struct {
	Search     Searcher
	Rows       RowSource
	Sink       RecordSink
	Exporter   Exporter
	Checkpoint CheckpointReader
	Status     status.Sink
	Tracker    *status.Tracker
}

// Options tune the run.
type Options struct {
	Range          models.SearchRange
	SearchAttempts int           // default: 3
	SearchBackoff  time.Duration // default: 5s
	MaxRows        int           // 0 processes all rows
	RowsPerSecond  float64       // 0 disables pacing
}

// Pipeline is the run orchestrator.
type Pipeline struct {
	deps    Deps
	opts    Options
	limiter *rate.Limiter
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Status == nil {
		deps.Status = status.LogSink{}
	}
	if deps.Tracker == nil {
		deps.Tracker = status.NewTracker()
	}
	if opts.SearchAttempts <= 0 {
		opts.SearchAttempts = 3
	}
	if opts.SearchBackoff <= 0 {
		opts.SearchBackoff = 5 * time.Second
	}
	limit := rate.Inf
	if opts.RowsPerSecond > 0 {
		limit = rate.Limit(opts.RowsPerSecond)
	}
	return &Pipeline{
		deps:    deps,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run executes the whole pipeline. The terminal status is emitted exactly
// once on every path; a non-nil error means the run was fatally terminal.
func (p *Pipeline) Run(ctx context.Context) (models.RunOutcome, error) {
	var outcome models.RunOutcome
	d := p.deps

	// Per-push flushing makes the sink crash-safe; closing here only
	// releases the handle, so it runs on fatal exits too.
	defer func() {
		if err := d.Sink.Close(); err != nil {
			slog.Warn("record sink close failed", "error", err)
		}
	}()

	rng := p.opts.Range
	d.Status.Progress(fmt.Sprintf("run started: %s through %s", rng.StartDate, rng.EndDate))

	// Checkpoint trouble never blocks a run; the configured range is used.
	if d.Checkpoint != nil {
		cp, err := d.Checkpoint.Read(ctx)
		if err != nil {
			slog.Warn("checkpoint read failed, using configured range",
				"error", models.NewPipelineError(models.ErrCodeCheckpointRead, "checkpoint ignored", err),
			)
		} else if next, ok := cp.NextStartDate(); ok {
			rng.StartDate = next
			d.Status.Progress(fmt.Sprintf("resuming from checkpoint: start date %s", next))
		}
	}

	d.Tracker.SetPhase("searching")
	if err := p.submitWithRetry(ctx, rng); err != nil {
		d.Tracker.SetPhase("failed")
		d.Status.Terminal(fmt.Sprintf("fatal: %v", err))
		return outcome, err
	}

	total, err := d.Rows.Count(ctx)
	if err != nil {
		err = models.NewPipelineError(models.ErrCodeSearchFailed, "result rows unavailable", err)
		d.Tracker.SetPhase("failed")
		d.Status.Terminal(fmt.Sprintf("fatal: %v", err))
		return outcome, err
	}
	if total == 0 {
		d.Tracker.SetPhase("done")
		d.Status.Terminal("no records found for the requested range")
		return outcome, nil
	}

	limit := total
	if p.opts.MaxRows > 0 && p.opts.MaxRows < total {
		limit = p.opts.MaxRows
		d.Status.Progress(fmt.Sprintf("row cap active: processing %d of %d rows", limit, total))
	}

	d.Tracker.SetPhase("extracting")
	d.Tracker.SetRows(limit)

	for i := 0; i < limit; i++ {
		if err := p.limiter.Wait(ctx); err != nil {
			err = models.NewPipelineError(models.ErrCodeRowFailed, "row loop interrupted", err)
			d.Tracker.SetPhase("failed")
			d.Status.Terminal(fmt.Sprintf("fatal: %v", err))
			return outcome, err
		}

		d.Tracker.SetRow(i + 1)
		d.Status.Progress(fmt.Sprintf("processing row %d of %d", i+1, limit))
		outcome.TotalAttempted++

		rec, rerr := d.Rows.Process(ctx, i)
		if rerr != nil {
			// One malformed row must never abort the batch.
			outcome.Failed++
			d.Tracker.Record(false)
			slog.Error("row failed, continuing", "row", i+1, "error", rerr)
			continue
		}
		if perr := d.Sink.Push(ctx, rec); perr != nil {
			outcome.Failed++
			d.Tracker.Record(false)
			slog.Error("record sink rejected row, continuing",
				"row", i+1,
				"documentNo", rec.DocumentNo,
				"error", perr,
			)
			continue
		}
		outcome.Succeeded++
		d.Tracker.Record(true)
	}

	// Finalize the artifact before it is shipped; the deferred close then
	// becomes a no-op.
	if err := d.Sink.Close(); err != nil {
		slog.Warn("record sink close failed", "error", err)
	}

	if d.Exporter != nil && outcome.Succeeded > 0 {
		d.Tracker.SetPhase("exporting")
		if err := d.Exporter.Export(ctx); err != nil {
			slog.Error("export upload failed",
				"error", models.NewPipelineError(models.ErrCodeExportFailed, "export artifact not uploaded", err),
			)
		}
	}

	d.Tracker.SetPhase("done")
	d.Status.Terminal(fmt.Sprintf("run complete: %d attempted, %d succeeded, %d failed",
		outcome.TotalAttempted, outcome.Succeeded, outcome.Failed))
	return outcome, nil
}

// submitWithRetry retries the search a fixed number of times with a fixed
// backoff. Exhausting the attempts is fatal for the run.
func (p *Pipeline) submitWithRetry(ctx context.Context, rng models.SearchRange) error {
	var lastErr error
	for attempt := 1; attempt <= p.opts.SearchAttempts; attempt++ {
		lastErr = p.deps.Search.Submit(ctx, rng)
		if lastErr == nil {
			if attempt > 1 {
				slog.Info("search succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		slog.Warn("search attempt failed",
			"attempt", attempt,
			"maxAttempts", p.opts.SearchAttempts,
			"error", lastErr,
		)
		if attempt < p.opts.SearchAttempts {
			select {
			case <-time.After(p.opts.SearchBackoff):
			case <-ctx.Done():
				return models.NewPipelineError(models.ErrCodeSearchFailed, "search retry interrupted", ctx.Err())
			}
		}
	}
	return models.NewPipelineError(
		models.ErrCodeSearchFailed,
		fmt.Sprintf("search failed after %d attempts", p.opts.SearchAttempts),
		lastErr,
	)
}
