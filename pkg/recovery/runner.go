package recovery

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
)

const (
	DefaultBatchSize = 10
	DefaultPause     = 500 * time.Millisecond
)

// Progress is reported after every batch.
type Progress struct {
	Batch     int
	Processed int
	Total     int
	Imported  int
	Skipped   int
	Errors    int
}

type RunOptions struct {
	BatchSize int
	Pause     time.Duration
	DryRun    bool
	// OnProgress is called after each batch when set.
	OnProgress func(Progress)
}

// Runner drives a full recovery in small batches. The remaining set is
// recomputed from the log on every run, so an interrupted run resumes.
type Runner struct {
	orch   *Orchestrator
	logger ectologger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRunner(orch *Orchestrator, logger ectologger.Logger) *Runner {
	return &Runner{orch: orch, logger: logger, sleep: sleepContext}
}

// Run recovers every remaining id. It stops between batches when ctx is done.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (Progress, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Pause < 0 {
		opts.Pause = 0
	}

	ids, err := r.orch.ListRecoverableIds(ctx)
	if err != nil {
		return Progress{}, err
	}

	progress := Progress{Total: len(ids.Remaining)}
	log := r.logger.WithContext(ctx)
	log.Infof("recovery: %d ids in log, %d already restored, %d remaining", ids.Total, ids.AlreadyRestored, progress.Total)
	if opts.DryRun || progress.Total == 0 {
		return progress, nil
	}

	for start := 0; start < len(ids.Remaining); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return progress, err
		}
		if start > 0 && opts.Pause > 0 {
			if err := r.sleep(ctx, opts.Pause); err != nil {
				return progress, err
			}
		}

		end := min(start+opts.BatchSize, len(ids.Remaining))
		result, err := r.orch.RecoverBatch(ctx, ids.Remaining[start:end])
		if result != nil {
			progress.Imported += result.Imported
			progress.Skipped += result.Skipped
			progress.Errors += result.Errors
			for _, detail := range result.ErrorDetails {
				log.Warn(detail)
			}
		}
		progress.Batch++
		progress.Processed = end
		if opts.OnProgress != nil {
			opts.OnProgress(progress)
		}
		if err != nil {
			return progress, err
		}

		log.WithFields(map[string]any{
			"batch":     progress.Batch,
			"processed": progress.Processed,
			"total":     progress.Total,
		}).Infof("recovered %d, skipped %d, errors %d", progress.Imported, progress.Skipped, progress.Errors)
	}
	return progress, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
