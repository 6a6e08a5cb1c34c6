// Package repository declares the persistence contracts used by the
// pipeline. Implementations live in the postgres and memory subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/resumeflow/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrStaleVersion = errors.New("stale version: resume was modified concurrently")
	ErrConflict     = errors.New("conflict")
)

// StatusUpdate is a versioned status write. The write only applies when the
// stored version equals ExpectedVersion; the version is then incremented.
// Nil timestamps leave the stored value unchanged.
type StatusUpdate struct {
	ID              uuid.UUID
	ExpectedVersion int
	Status          models.ResumeStatus
	ProcessingError *string
	ErrorCode       string
	ErrorRecovery   string
	LastProcessedAt *time.Time
	LastAnalyzedAt  *time.Time
	CompletedAt     *time.Time
}

type ResumeRepository interface {
	CreateResume(ctx context.Context, r *models.Resume) error
	GetResume(ctx context.Context, id uuid.UUID) (*models.Resume, error)
	UpdateStatus(ctx context.Context, upd StatusUpdate) (*models.Resume, error)
	// RecordError stores a failure on the resume without changing its status.
	RecordError(ctx context.Context, id uuid.UUID, msg, code, recovery string) error
}

type DocumentRepository interface {
	// ReplaceParsedDocument deletes any current document for the resume and
	// inserts doc in its place.
	ReplaceParsedDocument(ctx context.Context, doc *models.ParsedDocument) error
	GetParsedDocument(ctx context.Context, resumeID uuid.UUID) (*models.ParsedDocument, error)
}

type AnalysisRepository interface {
	InsertAnalysis(ctx context.Context, a *models.Analysis) error
	LatestAnalysis(ctx context.Context, resumeID uuid.UUID) (*models.Analysis, error)
}

type SkillRepository interface {
	FindSkillByName(ctx context.Context, name string) (*models.Skill, error)
	// CreateSkill inserts a skill, returning the existing row when a skill
	// with the same case-insensitive name already exists.
	CreateSkill(ctx context.Context, s *models.Skill) (*models.Skill, error)
	LinkResumeSkill(ctx context.Context, link models.ResumeSkill) error
	ListResumeSkills(ctx context.Context, resumeID uuid.UUID) ([]models.Skill, error)
}

type JobRepository interface {
	// UpsertJob inserts or updates a job keyed by (title, company).
	UpsertJob(ctx context.Context, j *models.Job) (*models.Job, error)
	SetJobSkills(ctx context.Context, jobID uuid.UUID, skills []models.JobSkill) error
	// ListJobsWithSkills returns every catalogue job with its skill edges,
	// including jobs that have none. Generated postings are left out.
	ListJobsWithSkills(ctx context.Context) ([]models.JobWithSkills, error)
}

type MatchRepository interface {
	// UpsertMatch inserts or replaces the match keyed by (resume_id, job_id).
	UpsertMatch(ctx context.Context, m *models.JobMatch) error
	DeleteMatches(ctx context.Context, resumeID uuid.UUID) (int64, error)
	ListMatches(ctx context.Context, resumeID uuid.UUID, limit int) ([]models.JobMatch, error)
}

// Store groups every repository the pipeline needs.
type Store interface {
	ResumeRepository
	DocumentRepository
	AnalysisRepository
	SkillRepository
	JobRepository
	MatchRepository

	// ClearDerived removes the parsed document, analyses, skill links and
	// job matches of a resume in one unit of work.
	ClearDerived(ctx context.Context, resumeID uuid.UUID) error
}
