package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/audit"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/models"
)

func testExecutor(attempts audit.AttemptLog) (*Executor, *[]time.Duration) {
	e := NewExecutor(attempts, config.PipelineConfig{
		BackoffBase:      time.Millisecond,
		FailureThreshold: 5,
		FailureWindow:    10 * time.Minute,
	}, nil)
	var delays []time.Duration
	e.onBackoff = func(_ Stage, _ int, d time.Duration) { delays = append(delays, d) }
	return e, &delays
}

func TestExecutorStopsAtCeiling(t *testing.T) {
	log := audit.NewMemory()
	e, delays := testExecutor(log)
	id := uuid.New()

	calls := 0
	err := e.Run(context.Background(), id, Stage{Phase: apperr.PhaseTextExtraction, MaxAttempts: 3}, func(context.Context, int) error {
		calls++
		return errors.New("dial tcp 10.0.0.1:443: connection refused")
	})
	require.NotNil(t, err)
	assert.Equal(t, apperr.KindNetwork, err.Kind)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, *delays)

	recorded := log.Attempts()
	require.Len(t, recorded, 3)
	for i, a := range recorded {
		assert.Equal(t, i+1, a.Attempt)
		assert.Equal(t, models.AttemptFailed, a.Outcome)
		assert.Equal(t, string(apperr.KindNetwork), a.ErrorType)
	}
}

func TestExecutorNonRetryableStopsImmediately(t *testing.T) {
	e, delays := testExecutor(audit.NewMemory())

	calls := 0
	err := e.Run(context.Background(), uuid.New(), Stage{Phase: apperr.PhaseTextExtraction, MaxAttempts: 3}, func(context.Context, int) error {
		calls++
		return apperr.Newf(apperr.KindCorruptedFile, apperr.PhaseTextExtraction, "xref table damaged")
	})
	require.NotNil(t, err)
	assert.Equal(t, apperr.KindCorruptedFile, err.Kind)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestExecutorRecoversOnRetry(t *testing.T) {
	log := audit.NewMemory()
	e, _ := testExecutor(log)

	var seen []int
	err := e.Run(context.Background(), uuid.New(), Stage{Phase: apperr.PhaseAnalysis, MaxAttempts: 2}, func(_ context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt == 1 {
			return errors.New("openai: status 503")
		}
		return nil
	})
	assert.Nil(t, err)
	assert.Equal(t, []int{1, 2}, seen)

	recorded := log.Attempts()
	require.Len(t, recorded, 2)
	assert.Equal(t, models.AttemptFailed, recorded[0].Outcome)
	assert.Equal(t, models.AttemptSucceeded, recorded[1].Outcome)
}

func TestExecutorSingleAttemptStage(t *testing.T) {
	e, delays := testExecutor(nil)
	calls := 0
	err := e.Run(context.Background(), uuid.New(), Stage{Phase: apperr.PhaseMatching}, func(context.Context, int) error {
		calls++
		return errors.New("request timed out")
	})
	require.NotNil(t, err)
	assert.Equal(t, apperr.KindTimeout, err.Kind)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestExecutorGuard(t *testing.T) {
	ctx := context.Background()
	log := audit.NewMemory()
	e, _ := testExecutor(log)
	id := uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, log.RecordAttempt(ctx, models.ProcessingAttempt{
			ResumeID: id, Phase: string(apperr.PhaseAnalysis), Attempt: 1, Outcome: models.AttemptFailed,
		}))
	}

	// other phases are not affected
	assert.NoError(t, e.Guard(ctx, id, apperr.PhaseTextExtraction))

	err := e.Guard(ctx, id, apperr.PhaseAnalysis)
	require.Error(t, err)
	assert.Equal(t, apperr.KindRateLimitExceeded, apperr.KindOf(err))

	called := false
	ae := e.Run(ctx, id, Stage{Phase: apperr.PhaseAnalysis, MaxAttempts: 2}, func(context.Context, int) error {
		called = true
		return nil
	})
	require.NotNil(t, ae)
	assert.Equal(t, apperr.KindRateLimitExceeded, ae.Kind)
	assert.False(t, called)

	// failures outside the window no longer count
	e.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	assert.NoError(t, e.Guard(ctx, id, apperr.PhaseAnalysis))
}
