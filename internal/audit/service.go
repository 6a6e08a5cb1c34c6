// Package audit records pipeline attempts and LLM usage.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/resumeflow/internal/llm"
	"github.com/nikhilbhutani/resumeflow/internal/models"
)

// AttemptLog stores one row per stage attempt and answers the recent-failure
// question asked before a new attempt starts.
type AttemptLog interface {
	RecordAttempt(ctx context.Context, a models.ProcessingAttempt) error
	CountRecentFailures(ctx context.Context, resumeID uuid.UUID, phase string, since time.Time) (int, error)
}

type Service struct {
	db *pgxpool.Pool
}

var (
	_ AttemptLog        = (*Service)(nil)
	_ llm.UsageRecorder = (*Service)(nil)
)

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) RecordAttempt(ctx context.Context, a models.ProcessingAttempt) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO processing_attempts (resume_id, phase, attempt, outcome, error_type, error_message, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ResumeID, a.Phase, a.Attempt, a.Outcome, a.ErrorType, a.ErrorMsg, a.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert processing attempt: %w", err)
	}
	return nil
}

func (s *Service) CountRecentFailures(ctx context.Context, resumeID uuid.UUID, phase string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM processing_attempts
		 WHERE resume_id = $1 AND phase = $2 AND outcome = $3 AND created_at >= $4`,
		resumeID, phase, models.AttemptFailed, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recent failures: %w", err)
	}
	return n, nil
}

// RecordUsage stores an LLM call. The record's Subject is the resume id when
// the call was made on behalf of a resume.
func (s *Service) RecordUsage(ctx context.Context, rec llm.UsageRecord) error {
	var resumeID *uuid.UUID
	if id, err := uuid.Parse(rec.Subject); err == nil {
		resumeID = &id
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO llm_usage_logs (resume_id, provider, model, input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, endpoint)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		resumeID, rec.Provider, rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.TotalTokens, rec.CostUSD, rec.LatencyMs, rec.Endpoint,
	)
	if err != nil {
		return fmt.Errorf("insert llm usage log: %w", err)
	}
	return nil
}

// Memory is an in-process AttemptLog and UsageRecorder.
type Memory struct {
	mu       sync.Mutex
	attempts []models.ProcessingAttempt
	usage    []llm.UsageRecord
	now      func() time.Time
}

var (
	_ AttemptLog        = (*Memory)(nil)
	_ llm.UsageRecorder = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) RecordAttempt(_ context.Context, a models.ProcessingAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now().UTC()
	}
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *Memory) CountRecentFailures(_ context.Context, resumeID uuid.UUID, phase string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.ResumeID == resumeID && a.Phase == phase && a.Outcome == models.AttemptFailed && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) RecordUsage(_ context.Context, rec llm.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = append(m.usage, rec)
	return nil
}

// Attempts returns a copy of every recorded attempt.
func (m *Memory) Attempts() []models.ProcessingAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ProcessingAttempt(nil), m.attempts...)
}

// Usage returns a copy of every recorded LLM call.
func (m *Memory) Usage() []llm.UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.UsageRecord(nil), m.usage...)
}
