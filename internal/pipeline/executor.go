package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/audit"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/models"
)

// Stage names one retried unit of work and its attempt ceiling.
type Stage struct {
	Phase       apperr.Phase
	MaxAttempts int
}

// AttemptFunc runs one attempt. attempt is 1-based.
type AttemptFunc func(ctx context.Context, attempt int) error

// Executor runs a stage with exponential backoff. The wait after failed
// attempt n is base * 2^(n-1), so a 2s base gives 2^n seconds.
type Executor struct {
	attempts  audit.AttemptLog
	base      time.Duration
	threshold int
	window    time.Duration
	now       func() time.Time
	onBackoff func(stage Stage, attempt int, delay time.Duration)
	logger    *slog.Logger
}

func NewExecutor(attempts audit.AttemptLog, cfg config.PipelineConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BackoffBase
	if base <= 0 {
		base = 2 * time.Second
	}
	return &Executor{
		attempts:  attempts,
		base:      base,
		threshold: cfg.FailureThreshold,
		window:    cfg.FailureWindow,
		now:       time.Now,
		logger:    logger,
	}
}

// Guard refuses a new attempt when the resume has failed this phase too
// often within the window.
func (e *Executor) Guard(ctx context.Context, resumeID uuid.UUID, phase apperr.Phase) error {
	if e.attempts == nil || e.threshold <= 0 {
		return nil
	}
	since := e.now().Add(-e.window)
	n, err := e.attempts.CountRecentFailures(ctx, resumeID, string(phase), since)
	if err != nil {
		return apperr.Classify(fmt.Errorf("count recent failures: %w", err), apperr.PhaseDatabaseStorage)
	}
	if n >= e.threshold {
		return apperr.Newf(apperr.KindRateLimitExceeded, phase,
			"%d failed %s attempts in the last %s", n, phase, e.window).
			WithMessage(fmt.Sprintf("This resume failed %d times recently, so processing is paused to cool down.", n)).
			WithRecovery(fmt.Sprintf("Wait %s before retrying, or upload a different file.", e.window))
	}
	return nil
}

// Run executes fn until it succeeds, fails with a non-retryable error, or
// the stage ceiling is reached. The returned error is always classified.
func (e *Executor) Run(ctx context.Context, resumeID uuid.UUID, stage Stage, fn AttemptFunc) *apperr.Error {
	if err := e.Guard(ctx, resumeID, stage.Phase); err != nil {
		ae, _ := apperr.As(err)
		return ae
	}

	maxAttempts := max(stage.MaxAttempts, 1)
	attempt := 0
	inner := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewExponential(e.base))
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := inner.Next()
		if !stop {
			e.logger.Info("retrying stage",
				"resume_id", resumeID,
				"phase", stage.Phase,
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
			)
			if e.onBackoff != nil {
				e.onBackoff(stage, attempt, delay)
			}
		}
		return delay, stop
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		start := e.now()
		err := fn(ctx, attempt)
		ae := apperr.Classify(err, stage.Phase)
		e.record(ctx, resumeID, stage, attempt, start, ae)
		if ae == nil {
			return nil
		}

		e.logger.Warn("stage attempt failed",
			"resume_id", resumeID,
			"phase", stage.Phase,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error_type", ae.Kind,
			"retryable", ae.Retryable,
			"error", ae.TechnicalDetails,
		)
		if ae.Retryable {
			return retry.RetryableError(ae)
		}
		return ae
	})
	if err == nil {
		return nil
	}
	return apperr.Classify(err, stage.Phase)
}

func (e *Executor) record(ctx context.Context, resumeID uuid.UUID, stage Stage, attempt int, start time.Time, ae *apperr.Error) {
	if e.attempts == nil {
		return
	}
	a := models.ProcessingAttempt{
		ResumeID:   resumeID,
		Phase:      string(stage.Phase),
		Attempt:    attempt,
		Outcome:    models.AttemptSucceeded,
		DurationMs: e.now().Sub(start).Milliseconds(),
	}
	if ae != nil {
		a.Outcome = models.AttemptFailed
		a.ErrorType = string(ae.Kind)
		a.ErrorMsg = ae.TechnicalDetails
	}
	if err := e.attempts.RecordAttempt(ctx, a); err != nil {
		e.logger.Warn("record attempt", "resume_id", resumeID, "phase", stage.Phase, "error", err)
	}
}
