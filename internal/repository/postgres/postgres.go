// Package postgres implements repository.Store on pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
)

type Store struct {
	db *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const resumeColumns = `id, user_id, file_name, file_path, file_type, mime_type, file_size_bytes, status,
	processing_error, processing_error_code, processing_recovery, version, last_processed_at, last_analyzed_at,
	processing_completed_at, created_at, updated_at`

func scanResume(row pgx.Row) (*models.Resume, error) {
	var r models.Resume
	err := row.Scan(&r.ID, &r.UserID, &r.FileName, &r.FilePath, &r.FileType, &r.MimeType, &r.FileSizeBytes,
		&r.Status, &r.ProcessingError, &r.ProcessingErrorCode, &r.ProcessingRecovery, &r.Version, &r.LastProcessedAt,
		&r.LastAnalyzedAt, &r.ProcessingCompletedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateResume(ctx context.Context, r *models.Resume) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = models.StatusUploaded
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO resumes (id, user_id, file_name, file_path, file_type, mime_type, file_size_bytes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING version, created_at, updated_at`,
		r.ID, r.UserID, r.FileName, r.FilePath, r.FileType, r.MimeType, r.FileSizeBytes, r.Status,
	).Scan(&r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert resume: %w", err)
	}
	return nil
}

func (s *Store) GetResume(ctx context.Context, id uuid.UUID) (*models.Resume, error) {
	r, err := scanResume(s.db.QueryRow(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resume: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateStatus(ctx context.Context, upd repository.StatusUpdate) (*models.Resume, error) {
	r, err := scanResume(s.db.QueryRow(ctx,
		`UPDATE resumes SET
			status = $3,
			processing_error = $4,
			processing_error_code = $5,
			processing_recovery = $6,
			last_processed_at = COALESCE($7, last_processed_at),
			last_analyzed_at = COALESCE($8, last_analyzed_at),
			processing_completed_at = COALESCE($9, processing_completed_at),
			version = version + 1,
			updated_at = now()
		 WHERE id = $1 AND version = $2
		 RETURNING `+resumeColumns,
		upd.ID, upd.ExpectedVersion, upd.Status, upd.ProcessingError, upd.ErrorCode, upd.ErrorRecovery,
		upd.LastProcessedAt, upd.LastAnalyzedAt, upd.CompletedAt,
	))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update resume status: %w", err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM resumes WHERE id = $1)`, upd.ID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check resume: %w", err)
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrStaleVersion
}

func (s *Store) RecordError(ctx context.Context, id uuid.UUID, msg, code, recovery string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE resumes SET processing_error = $2, processing_error_code = $3, processing_recovery = $4, updated_at = now()
		 WHERE id = $1`,
		id, msg, code, recovery,
	)
	if err != nil {
		return fmt.Errorf("record resume error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ReplaceParsedDocument(ctx context.Context, doc *models.ParsedDocument) error {
	parsed, err := json.Marshal(doc.ParsedData)
	if err != nil {
		return fmt.Errorf("marshal parsed data: %w", err)
	}
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	warnings := doc.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM parsed_documents WHERE resume_id = $1`, doc.ResumeID); err != nil {
		return fmt.Errorf("delete parsed document: %w", err)
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO parsed_documents (resume_id, raw_text, parsed_data, metadata, confidence, warnings)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, processed_at`,
		doc.ResumeID, doc.RawText, parsed, meta, doc.Confidence, warnings,
	).Scan(&doc.ID, &doc.ProcessedAt)
	if err != nil {
		return fmt.Errorf("insert parsed document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) GetParsedDocument(ctx context.Context, resumeID uuid.UUID) (*models.ParsedDocument, error) {
	var (
		d            models.ParsedDocument
		parsed, meta []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, resume_id, raw_text, parsed_data, metadata, confidence, warnings, processed_at
		 FROM parsed_documents WHERE resume_id = $1`,
		resumeID,
	).Scan(&d.ID, &d.ResumeID, &d.RawText, &parsed, &meta, &d.Confidence, &d.Warnings, &d.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get parsed document: %w", err)
	}
	if err := json.Unmarshal(parsed, &d.ParsedData); err != nil {
		return nil, fmt.Errorf("decode parsed data: %w", err)
	}
	if err := json.Unmarshal(meta, &d.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &d, nil
}

func (s *Store) ClearDerived(ctx context.Context, resumeID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"job_matches", "resume_skills", "analyses", "parsed_documents"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE resume_id = $1`, resumeID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
