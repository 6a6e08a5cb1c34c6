package models

import (
	"time"

	"github.com/google/uuid"
)

type ResumeStatus string

const (
	StatusUploaded           ResumeStatus = "uploaded"
	StatusParsing            ResumeStatus = "parsing"
	StatusParsed             ResumeStatus = "parsed"
	StatusParsedWithWarnings ResumeStatus = "parsed_with_warnings"
	StatusFailed             ResumeStatus = "failed"
	StatusAnalyzing          ResumeStatus = "analyzing"
	StatusAnalyzed           ResumeStatus = "analyzed"
	StatusAnalysisFailed     ResumeStatus = "analysis_failed"
	StatusCompleted          ResumeStatus = "completed"
	StatusReprocessing       ResumeStatus = "reprocessing"
)

// InFlight reports whether a background stage is running for this status.
func (s ResumeStatus) InFlight() bool {
	return s == StatusParsing || s == StatusAnalyzing || s == StatusReprocessing
}

// IsParsed reports whether extraction finished and analysis may start.
func (s ResumeStatus) IsParsed() bool {
	return s == StatusParsed || s == StatusParsedWithWarnings
}

type Resume struct {
	ID                    uuid.UUID    `json:"id" db:"id"`
	UserID                uuid.UUID    `json:"user_id" db:"user_id"`
	FileName              string       `json:"file_name" db:"file_name"`
	FilePath              string       `json:"file_path" db:"file_path"`
	FileType              string       `json:"file_type" db:"file_type"`
	MimeType              string       `json:"mime_type,omitempty" db:"mime_type"`
	FileSizeBytes         int64        `json:"file_size_bytes" db:"file_size_bytes"`
	Status                ResumeStatus `json:"status" db:"status"`
	ProcessingError       *string      `json:"processing_error,omitempty" db:"processing_error"`
	ProcessingErrorCode   string       `json:"processing_error_code,omitempty" db:"processing_error_code"`
	ProcessingRecovery    string       `json:"processing_recovery,omitempty" db:"processing_recovery"`
	Version               int          `json:"version" db:"version"`
	LastProcessedAt       *time.Time   `json:"last_processed_at,omitempty" db:"last_processed_at"`
	LastAnalyzedAt        *time.Time   `json:"last_analyzed_at,omitempty" db:"last_analyzed_at"`
	ProcessingCompletedAt *time.Time   `json:"processing_completed_at,omitempty" db:"processing_completed_at"`
	CreatedAt             time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at" db:"updated_at"`
}

type ContactInfo struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	Website  string `json:"website,omitempty"`
}

// ParsedData is the structured view of a resume produced by the parser.
type ParsedData struct {
	Contact  ContactInfo       `json:"contact"`
	Sections map[string]string `json:"sections"`
	Skills   []string          `json:"skills"`
}

type ExtractionMetadata struct {
	Format         string   `json:"format"`
	Method         string   `json:"method"`
	Pages          int      `json:"pages"`
	OCRConfidence  *float64 `json:"ocr_confidence,omitempty"`
	ProcessingNote string   `json:"processing_note,omitempty"`
	Legacy         bool     `json:"legacy,omitempty"`
	CharCount      int      `json:"char_count"`
	WordCount      int      `json:"word_count"`
	Warnings       []string `json:"warnings,omitempty"`
}

type ParsedDocument struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	ResumeID    uuid.UUID          `json:"resume_id" db:"resume_id"`
	RawText     string             `json:"raw_text" db:"raw_text"`
	ParsedData  ParsedData         `json:"parsed_data" db:"parsed_data"`
	Metadata    ExtractionMetadata `json:"metadata" db:"metadata"`
	Confidence  float64            `json:"confidence" db:"confidence"`
	Warnings    []string           `json:"warnings" db:"warnings"`
	ProcessedAt time.Time          `json:"processed_at" db:"processed_at"`
}

type AnalysisSkills struct {
	Technical []string `json:"technical"`
	Soft      []string `json:"soft"`
	Tools     []string `json:"tools"`
}

type ATSCompatibility struct {
	Score           int      `json:"score"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

type Analysis struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	ResumeID          uuid.UUID        `json:"resume_id" db:"resume_id"`
	OverallScore      int              `json:"overall_score" db:"overall_score"`
	Skills            AnalysisSkills   `json:"skills" db:"skills"`
	ExperienceSummary string           `json:"experience_summary" db:"experience_summary"`
	EducationSummary  string           `json:"education_summary" db:"education_summary"`
	Strengths         []string         `json:"strengths" db:"strengths"`
	ImprovementAreas  []string         `json:"improvement_areas" db:"improvement_areas"`
	ATSCompatibility  ATSCompatibility `json:"ats_compatibility" db:"ats_compatibility"`
	Keywords          []string         `json:"keywords" db:"keywords"`
	Provider          string           `json:"provider,omitempty" db:"provider"`
	Model             string           `json:"model,omitempty" db:"model"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
}
