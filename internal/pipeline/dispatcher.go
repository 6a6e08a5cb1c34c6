package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InlineDispatcher runs tasks on goroutines of the current process.
type InlineDispatcher struct {
	runner  *Runner
	timeout time.Duration
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewInlineDispatcher(runner *Runner, timeout time.Duration, logger *slog.Logger) *InlineDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InlineDispatcher{runner: runner, timeout: timeout, logger: logger}
}

// Dispatch returns immediately. The task outlives the caller's context but
// keeps its values.
func (d *InlineDispatcher) Dispatch(ctx context.Context, t Task) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		runCtx := context.WithoutCancel(ctx)
		if d.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, d.timeout)
			defer cancel()
		}
		if err := d.runner.Run(runCtx, t); err != nil {
			d.logger.Debug("inline task ended with error", "resume_id", t.ResumeID, "task", t.Kind, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched task has returned or ctx is done.
func (d *InlineDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
