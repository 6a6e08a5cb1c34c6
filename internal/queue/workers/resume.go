// Package workers holds the asynq handlers run by cmd/worker.
package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/pipeline"
	"github.com/nikhilbhutani/resumeflow/internal/queue"
)

type TaskRunner interface {
	Run(ctx context.Context, t pipeline.Task) error
}

// ResumeWorker runs pipeline tasks taken from the queue.
type ResumeWorker struct {
	runner TaskRunner
	logger *slog.Logger
}

func NewResumeWorker(runner TaskRunner, logger *slog.Logger) *ResumeWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResumeWorker{runner: runner, logger: logger}
}

// ProcessTask never asks asynq to retry. A classified failure is already
// on the resume, so it is only logged.
func (w *ResumeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	task, err := queue.ParseTask(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	w.logger.Info("processing resume task", "resume_id", task.ResumeID, "task", task.Kind)
	if err := w.runner.Run(ctx, task); err != nil {
		if ae, ok := apperr.As(err); ok {
			w.logger.Warn("resume task failed", "resume_id", task.ResumeID, "task", task.Kind, "error_type", ae.Kind)
			return nil
		}
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return nil
}
