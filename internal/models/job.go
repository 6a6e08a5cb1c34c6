package models

import (
	"time"

	"github.com/google/uuid"
)

type SkillCategory string

const (
	SkillTechnical     SkillCategory = "technical"
	SkillSoft          SkillCategory = "soft"
	SkillTool          SkillCategory = "tool"
	SkillLanguage      SkillCategory = "language"
	SkillCertification SkillCategory = "certification"
	SkillOther         SkillCategory = "other"
)

type SkillLevel string

const (
	LevelBeginner     SkillLevel = "beginner"
	LevelIntermediate SkillLevel = "intermediate"
	LevelAdvanced     SkillLevel = "advanced"
	LevelExpert       SkillLevel = "expert"
)

type Skill struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Category  SkillCategory `json:"category" db:"category"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

type ResumeSkill struct {
	ResumeID uuid.UUID  `json:"resume_id" db:"resume_id"`
	SkillID  uuid.UUID  `json:"skill_id" db:"skill_id"`
	Level    SkillLevel `json:"level" db:"level"`
}

type Job struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Company      string    `json:"company" db:"company"`
	Location     string    `json:"location,omitempty" db:"location"`
	JobTypes     []string  `json:"job_types,omitempty" db:"job_types"`
	Description  string    `json:"description,omitempty" db:"description"`
	Requirements []string  `json:"requirements,omitempty" db:"requirements"`
	SalaryMin    *int      `json:"salary_min,omitempty" db:"salary_min"`
	SalaryMax    *int      `json:"salary_max,omitempty" db:"salary_max"`
	URL          string    `json:"url,omitempty" db:"url"`
	Source       string    `json:"source" db:"source"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// JobSkill is an edge of the job/skill graph.
type JobSkill struct {
	JobID     uuid.UUID `json:"job_id" db:"job_id"`
	SkillID   uuid.UUID `json:"skill_id" db:"skill_id"`
	SkillName string    `json:"skill_name" db:"skill_name"`
	Required  bool      `json:"required" db:"required"`
}

// JobWithSkills is a catalogue job together with its skill edges.
type JobWithSkills struct {
	Job    Job
	Skills []JobSkill
}

type MatchDetails struct {
	MatchingSkills []string `json:"matching_skills"`
	MissingSkills  []string `json:"missing_skills"`
	AIGenerated    bool     `json:"aiGenerated"`
}

type JobMatch struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	ResumeID   uuid.UUID    `json:"resume_id" db:"resume_id"`
	JobID      uuid.UUID    `json:"job_id" db:"job_id"`
	MatchScore int          `json:"match_score" db:"match_score"`
	Details    MatchDetails `json:"match_details" db:"match_details"`
	Job        *Job         `json:"job,omitempty" db:"-"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

const (
	JobSourceCatalog     = "catalog"
	JobSourceAIGenerated = "ai-generated"
)
