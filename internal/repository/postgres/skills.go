package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
)

func (s *Store) FindSkillByName(ctx context.Context, name string) (*models.Skill, error) {
	var sk models.Skill
	err := s.db.QueryRow(ctx,
		`SELECT id, name, category, created_at FROM skills WHERE lower(name) = lower(trim($1))`,
		name,
	).Scan(&sk.ID, &sk.Name, &sk.Category, &sk.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find skill: %w", err)
	}
	return &sk, nil
}

func (s *Store) CreateSkill(ctx context.Context, in *models.Skill) (*models.Skill, error) {
	var sk models.Skill
	err := s.db.QueryRow(ctx,
		`INSERT INTO skills (name, category) VALUES (trim($1), $2)
		 ON CONFLICT ((lower(name))) DO NOTHING
		 RETURNING id, name, category, created_at`,
		in.Name, in.Category,
	).Scan(&sk.ID, &sk.Name, &sk.Category, &sk.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// another writer created it first
		return s.FindSkillByName(ctx, in.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("insert skill: %w", err)
	}
	return &sk, nil
}

func (s *Store) LinkResumeSkill(ctx context.Context, link models.ResumeSkill) error {
	level := link.Level
	if level == "" {
		level = models.LevelIntermediate
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO resume_skills (resume_id, skill_id, level) VALUES ($1, $2, $3)
		 ON CONFLICT (resume_id, skill_id) DO UPDATE SET level = EXCLUDED.level`,
		link.ResumeID, link.SkillID, level,
	)
	if err != nil {
		return fmt.Errorf("link resume skill: %w", err)
	}
	return nil
}

func (s *Store) ListResumeSkills(ctx context.Context, resumeID uuid.UUID) ([]models.Skill, error) {
	rows, err := s.db.Query(ctx,
		`SELECT s.id, s.name, s.category, s.created_at
		 FROM resume_skills rs JOIN skills s ON s.id = rs.skill_id
		 WHERE rs.resume_id = $1 ORDER BY s.name`,
		resumeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list resume skills: %w", err)
	}
	defer rows.Close()

	var out []models.Skill
	for rows.Next() {
		var sk models.Skill
		if err := rows.Scan(&sk.ID, &sk.Name, &sk.Category, &sk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}
