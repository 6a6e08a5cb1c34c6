// Package lifecycle owns resume status transitions and the progress
// estimate shown to polling clients.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
)

var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrMissingCause      = errors.New("failure transition requires an error")
)

var edges = map[models.ResumeStatus][]models.ResumeStatus{
	models.StatusUploaded:           {models.StatusParsing},
	models.StatusParsing:            {models.StatusParsed, models.StatusParsedWithWarnings, models.StatusFailed},
	// terminal: only a forced reprocess leaves it
	models.StatusFailed:             nil,
	models.StatusParsed:             {models.StatusAnalyzing},
	models.StatusParsedWithWarnings: {models.StatusAnalyzing},
	models.StatusAnalyzing:          {models.StatusAnalyzed, models.StatusAnalysisFailed},
	models.StatusAnalyzed:           {models.StatusCompleted, models.StatusAnalyzing},
	models.StatusAnalysisFailed:     {models.StatusAnalyzing},
	models.StatusCompleted:          {models.StatusAnalyzing},
	models.StatusReprocessing:       {models.StatusParsing, models.StatusFailed},
}

// CanTransition reports whether from -> to is a legal edge. Every status may
// move to reprocessing.
func CanTransition(from, to models.ResumeStatus) bool {
	if to == models.StatusReprocessing {
		_, known := edges[from]
		return known
	}
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

func isFailure(s models.ResumeStatus) bool {
	return s == models.StatusFailed || s == models.StatusAnalysisFailed
}

type StatusWriter interface {
	UpdateStatus(ctx context.Context, upd repository.StatusUpdate) (*models.Resume, error)
}

type Machine struct {
	store  StatusWriter
	now    func() time.Time
	logger *slog.Logger
}

func NewMachine(store StatusWriter, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{store: store, now: time.Now, logger: logger}
}

// Transition moves r to status to. Failure statuses require a cause, which is
// persisted as the processing error; every other transition clears it. The
// write is conditional on r.Version and returns the stored resume.
func (m *Machine) Transition(ctx context.Context, r *models.Resume, to models.ResumeStatus, cause *apperr.Error) (*models.Resume, error) {
	if !CanTransition(r.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.Status, to)
	}

	upd := repository.StatusUpdate{
		ID:              r.ID,
		ExpectedVersion: r.Version,
		Status:          to,
	}

	if isFailure(to) {
		if cause == nil || cause.UserMessage == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingCause, to)
		}
		msg := cause.UserMessage
		upd.ProcessingError = &msg
		upd.ErrorCode = string(cause.Kind)
		upd.ErrorRecovery = cause.RecoveryAction
	}

	now := m.now().UTC()
	switch to {
	case models.StatusParsing, models.StatusAnalyzing:
		upd.LastProcessedAt = &now
	case models.StatusAnalyzed:
		upd.LastAnalyzedAt = &now
	case models.StatusCompleted:
		upd.CompletedAt = &now
	}

	updated, err := m.store.UpdateStatus(ctx, upd)
	if err != nil {
		return nil, fmt.Errorf("update status %s -> %s: %w", r.Status, to, err)
	}

	m.logger.Info("resume status changed",
		"resume_id", r.ID,
		"from", r.Status,
		"to", to,
		"version", updated.Version,
	)
	return updated, nil
}
