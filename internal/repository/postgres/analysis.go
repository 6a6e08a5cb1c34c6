package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
)

func (s *Store) InsertAnalysis(ctx context.Context, a *models.Analysis) error {
	skills, err := json.Marshal(a.Skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	ats, err := json.Marshal(a.ATSCompatibility)
	if err != nil {
		return fmt.Errorf("marshal ats compatibility: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO analyses (resume_id, overall_score, skills, experience_summary, education_summary,
			strengths, improvement_areas, ats_compatibility, keywords, provider, model)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		a.ResumeID, a.OverallScore, skills, a.ExperienceSummary, a.EducationSummary,
		nonNil(a.Strengths), nonNil(a.ImprovementAreas), ats, nonNil(a.Keywords), a.Provider, a.Model,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (s *Store) LatestAnalysis(ctx context.Context, resumeID uuid.UUID) (*models.Analysis, error) {
	var (
		a           models.Analysis
		skills, ats []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, resume_id, overall_score, skills, experience_summary, education_summary,
			strengths, improvement_areas, ats_compatibility, keywords, provider, model, created_at
		 FROM analyses WHERE resume_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		resumeID,
	).Scan(&a.ID, &a.ResumeID, &a.OverallScore, &skills, &a.ExperienceSummary, &a.EducationSummary,
		&a.Strengths, &a.ImprovementAreas, &ats, &a.Keywords, &a.Provider, &a.Model, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest analysis: %w", err)
	}
	if err := json.Unmarshal(skills, &a.Skills); err != nil {
		return nil, fmt.Errorf("decode skills: %w", err)
	}
	if err := json.Unmarshal(ats, &a.ATSCompatibility); err != nil {
		return nil, fmt.Errorf("decode ats compatibility: %w", err)
	}
	return &a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
