package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/resumeflow/internal/models"
)

func (s *Store) UpsertJob(ctx context.Context, j *models.Job) (*models.Job, error) {
	out := *j
	err := s.db.QueryRow(ctx,
		`INSERT INTO jobs (title, company, location, job_types, description, requirements,
			salary_min, salary_max, url, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (title, company) DO UPDATE SET
			location = EXCLUDED.location,
			job_types = EXCLUDED.job_types,
			description = EXCLUDED.description,
			requirements = EXCLUDED.requirements,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			url = EXCLUDED.url,
			source = EXCLUDED.source
		 RETURNING id, created_at`,
		j.Title, j.Company, j.Location, nonNil(j.JobTypes), j.Description, nonNil(j.Requirements),
		j.SalaryMin, j.SalaryMax, j.URL, j.Source,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert job: %w", err)
	}
	return &out, nil
}

func (s *Store) SetJobSkills(ctx context.Context, jobID uuid.UUID, skills []models.JobSkill) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM job_skills WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("clear job skills: %w", err)
	}
	batch := &pgx.Batch{}
	for _, sk := range skills {
		batch.Queue(`INSERT INTO job_skills (job_id, skill_id, required) VALUES ($1, $2, $3)
			ON CONFLICT (job_id, skill_id) DO UPDATE SET required = EXCLUDED.required`,
			jobID, sk.SkillID, sk.Required)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert job skills: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) ListJobsWithSkills(ctx context.Context) ([]models.JobWithSkills, error) {
	rows, err := s.db.Query(ctx,
		`SELECT j.id, j.title, j.company, j.location, j.job_types, j.description, j.requirements,
			j.salary_min, j.salary_max, j.url, j.source, j.created_at,
			js.skill_id, s.name, js.required
		 FROM jobs j
		 LEFT JOIN job_skills js ON js.job_id = j.id
		 LEFT JOIN skills s ON s.id = js.skill_id
		 WHERE j.source <> $1
		 ORDER BY j.title, j.id, s.name`,
		models.JobSourceAIGenerated,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []models.JobWithSkills
	for rows.Next() {
		var (
			j         models.Job
			skillID   *uuid.UUID
			skillName *string
			required  *bool
		)
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.JobTypes, &j.Description,
			&j.Requirements, &j.SalaryMin, &j.SalaryMax, &j.URL, &j.Source, &j.CreatedAt,
			&skillID, &skillName, &required); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].Job.ID != j.ID {
			out = append(out, models.JobWithSkills{Job: j})
		}
		// a job without edges comes back as a single row of NULLs
		if skillID == nil || skillName == nil {
			continue
		}
		sk := models.JobSkill{JobID: j.ID, SkillID: *skillID, SkillName: *skillName}
		if required != nil {
			sk.Required = *required
		}
		out[len(out)-1].Skills = append(out[len(out)-1].Skills, sk)
	}
	return out, rows.Err()
}

func (s *Store) UpsertMatch(ctx context.Context, m *models.JobMatch) error {
	details, err := json.Marshal(m.Details)
	if err != nil {
		return fmt.Errorf("marshal match details: %w", err)
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO job_matches (resume_id, job_id, match_score, match_details)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (resume_id, job_id) DO UPDATE SET
			match_score = EXCLUDED.match_score,
			match_details = EXCLUDED.match_details
		 RETURNING id, created_at`,
		m.ResumeID, m.JobID, m.MatchScore, details,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert job match: %w", err)
	}
	return nil
}

func (s *Store) DeleteMatches(ctx context.Context, resumeID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM job_matches WHERE resume_id = $1`, resumeID)
	if err != nil {
		return 0, fmt.Errorf("delete job matches: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListMatches(ctx context.Context, resumeID uuid.UUID, limit int) ([]models.JobMatch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.resume_id, m.job_id, m.match_score, m.match_details, m.created_at,
			j.title, j.company, j.location, j.job_types, j.description, j.requirements,
			j.salary_min, j.salary_max, j.url, j.source, j.created_at
		 FROM job_matches m JOIN jobs j ON j.id = m.job_id
		 WHERE m.resume_id = $1
		 ORDER BY m.match_score DESC, j.title
		 LIMIT $2`,
		resumeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list job matches: %w", err)
	}
	defer rows.Close()

	var out []models.JobMatch
	for rows.Next() {
		var (
			m       models.JobMatch
			j       models.Job
			details []byte
		)
		if err := rows.Scan(&m.ID, &m.ResumeID, &m.JobID, &m.MatchScore, &details, &m.CreatedAt,
			&j.Title, &j.Company, &j.Location, &j.JobTypes, &j.Description, &j.Requirements,
			&j.SalaryMin, &j.SalaryMax, &j.URL, &j.Source, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job match: %w", err)
		}
		if err := json.Unmarshal(details, &m.Details); err != nil {
			return nil, fmt.Errorf("decode match details: %w", err)
		}
		j.ID = m.JobID
		m.Job = &j
		out = append(out, m)
	}
	return out, rows.Err()
}
