// Package analysis sends parsed resume text to the AI service and persists
// the validated result.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/llm"
	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/prompt"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
	"github.com/nikhilbhutani/resumeflow/internal/skills"
	"github.com/nikhilbhutani/resumeflow/pkg/tokenizer"
)

// MaxInputRunes bounds the resume text sent to the model.
const MaxInputRunes = 12000

const InvalidFormatMessage = "Invalid analysis format"

var stringList = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

var responseSchema = llm.MustCompileSchema("analysis", map[string]any{
	"type":     "object",
	"required": []string{"skills"},
	"properties": map[string]any{
		"overall_score": map[string]any{"type": "number"},
		"skills": map[string]any{
			"type":     "object",
			"required": []string{"technical"},
			"properties": map[string]any{
				"technical": stringList,
				"soft":      stringList,
				"tools":     stringList,
			},
		},
		"experience_summary": map[string]any{"type": "string"},
		"education_summary":  map[string]any{"type": "string"},
		"strengths":          stringList,
		"improvement_areas":  stringList,
		"ats_compatibility": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"score":           map[string]any{"type": "number"},
				"issues":          stringList,
				"recommendations": stringList,
			},
		},
		"keywords": stringList,
	},
})

type response struct {
	OverallScore      float64               `json:"overall_score"`
	Skills            models.AnalysisSkills `json:"skills"`
	ExperienceSummary string                `json:"experience_summary"`
	EducationSummary  string                `json:"education_summary"`
	Strengths         []string              `json:"strengths"`
	ImprovementAreas  []string              `json:"improvement_areas"`
	ATSCompatibility  struct {
		Score           float64  `json:"score"`
		Issues          []string `json:"issues"`
		Recommendations []string `json:"recommendations"`
	} `json:"ats_compatibility"`
	Keywords []string `json:"keywords"`
}

type Orchestrator struct {
	ai         llm.Completer
	analyses   repository.AnalysisRepository
	reconciler *skills.Reconciler
	logger     *slog.Logger
}

func NewOrchestrator(ai llm.Completer, analyses repository.AnalysisRepository, reconciler *skills.Reconciler, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{ai: ai, analyses: analyses, reconciler: reconciler, logger: logger}
}

// Analyze runs one analysis of doc. Every returned error is an *apperr.Error
// in the analysis phase; nothing is persisted unless the response validates.
func (o *Orchestrator) Analyze(ctx context.Context, resumeID uuid.UUID, doc *models.ParsedDocument) (*models.Analysis, error) {
	text, truncated := tokenizer.TruncateRunes(doc.RawText, MaxInputRunes)

	system, user, err := prompt.Build(prompt.ResumeAnalysis, map[string]string{"resume_text": text})
	if err != nil {
		return nil, apperr.New(apperr.KindUnknown, apperr.PhaseAnalysis, err)
	}

	o.logger.Debug("requesting resume analysis",
		"resume_id", resumeID,
		"input_runes", len([]rune(text)),
		"estimated_tokens", tokenizer.CountTokens(system+user),
		"truncated", truncated,
	)

	resp, err := o.ai.Complete(ctx, llm.CompletionRequest{
		System:      system,
		User:        user,
		JSONMode:    true,
		Temperature: 0.2,
		MaxTokens:   2048,
		Endpoint:    "resume-analysis",
		Subject:     resumeID.String(),
	})
	if err != nil {
		return nil, apperr.Classify(fmt.Errorf("llm complete: %w", err), apperr.PhaseAnalysis)
	}

	var parsed response
	if err := responseSchema.Decode([]byte(resp.Content), &parsed); err != nil {
		o.logger.Warn("analysis response rejected", "resume_id", resumeID, "error", err)
		return nil, apperr.New(apperr.KindAPI, apperr.PhaseAnalysis, err).WithMessage(InvalidFormatMessage)
	}

	a := &models.Analysis{
		ResumeID:          resumeID,
		OverallScore:      clampScore(parsed.OverallScore),
		Skills:            parsed.Skills,
		ExperienceSummary: parsed.ExperienceSummary,
		EducationSummary:  parsed.EducationSummary,
		Strengths:         parsed.Strengths,
		ImprovementAreas:  parsed.ImprovementAreas,
		ATSCompatibility: models.ATSCompatibility{
			Score:           clampScore(parsed.ATSCompatibility.Score),
			Issues:          parsed.ATSCompatibility.Issues,
			Recommendations: parsed.ATSCompatibility.Recommendations,
		},
		Keywords: parsed.Keywords,
		Provider: resp.Provider,
		Model:    resp.Model,
	}

	if err := o.analyses.InsertAnalysis(ctx, a); err != nil {
		return nil, apperr.Classify(fmt.Errorf("insert analysis: %w", err), apperr.PhaseDatabaseStorage)
	}

	if o.reconciler != nil {
		if _, err := o.reconciler.Reconcile(ctx, resumeID, doc.ParsedData.Skills, a.Skills); err != nil {
			return nil, apperr.Classify(fmt.Errorf("reconcile skills: %w", err), apperr.PhaseDatabaseStorage)
		}
	}

	o.logger.Info("resume analysed",
		"resume_id", resumeID,
		"overall_score", a.OverallScore,
		"provider", resp.Provider,
		"model", resp.Model,
	)
	return a, nil
}

func clampScore(v float64) int {
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
