package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AttemptSucceeded = "succeeded"
	AttemptFailed    = "failed"
)

// ProcessingAttempt is one run of one pipeline stage for one resume.
type ProcessingAttempt struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ResumeID   uuid.UUID `json:"resume_id" db:"resume_id"`
	Phase      string    `json:"phase" db:"phase"`
	Attempt    int       `json:"attempt" db:"attempt"`
	Outcome    string    `json:"outcome" db:"outcome"`
	ErrorType  string    `json:"error_type,omitempty" db:"error_type"`
	ErrorMsg   string    `json:"error_message,omitempty" db:"error_message"`
	DurationMs int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type LLMUsageLog struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	ResumeID     *uuid.UUID `json:"resume_id,omitempty" db:"resume_id"`
	Provider     string     `json:"provider" db:"provider"`
	Model        string     `json:"model" db:"model"`
	InputTokens  int        `json:"input_tokens" db:"input_tokens"`
	OutputTokens int        `json:"output_tokens" db:"output_tokens"`
	TotalTokens  int        `json:"total_tokens" db:"total_tokens"`
	CostUSD      float64    `json:"cost_usd" db:"cost_usd"`
	LatencyMs    int64      `json:"latency_ms" db:"latency_ms"`
	Endpoint     string     `json:"endpoint" db:"endpoint"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
