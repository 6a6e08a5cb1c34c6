// Package pipeline runs the resume processing stages in the background and
// exposes the entry points the API calls.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/resumeflow/internal/matching"
)

type TaskKind string

const (
	TaskProcess TaskKind = "process"
	TaskAnalyze TaskKind = "analyze"
	TaskMatch   TaskKind = "match"
)

// Task is one background attempt. LockToken is the advisory lock the
// dispatcher must release when the attempt ends.
type Task struct {
	Kind      TaskKind      `json:"kind"`
	ResumeID  uuid.UUID     `json:"resume_id"`
	Force     bool          `json:"force,omitempty"`
	Mode      matching.Mode `json:"mode,omitempty"`
	LockToken string        `json:"lock_token,omitempty"`
}

// Dispatcher starts a task without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Task) error
}
