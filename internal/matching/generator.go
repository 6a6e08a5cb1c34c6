package matching

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/llm"
	"github.com/nikhilbhutani/resumeflow/internal/prompt"
)

const (
	MinGenerated = 5
	MaxGenerated = 7

	InvalidJobListMessage = "Invalid job list format"
)

var strList = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

var jobListSchema = llm.MustCompileSchema("job-list", map[string]any{
	"type":     "object",
	"required": []string{"jobs"},
	"properties": map[string]any{
		"jobs": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []string{"title", "company", "match_score"},
				"properties": map[string]any{
					"title":           map[string]any{"type": "string", "minLength": 1},
					"company":         map[string]any{"type": "string", "minLength": 1},
					"location":        map[string]any{"type": "string"},
					"job_types":       strList,
					"description":     map[string]any{"type": "string"},
					"requirements":    strList,
					"salary_min":      map[string]any{"type": []string{"number", "null"}},
					"salary_max":      map[string]any{"type": []string{"number", "null"}},
					"match_score":     map[string]any{"type": "number"},
					"matching_skills": strList,
					"missing_skills":  strList,
				},
			},
		},
	},
})

// GeneratedJob is one AI-suggested posting with its self-reported fit.
type GeneratedJob struct {
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Location       string   `json:"location"`
	JobTypes       []string `json:"job_types"`
	Description    string   `json:"description"`
	Requirements   []string `json:"requirements"`
	SalaryMin      *float64 `json:"salary_min"`
	SalaryMax      *float64 `json:"salary_max"`
	MatchScore     float64  `json:"match_score"`
	MatchingSkills []string `json:"matching_skills"`
	MissingSkills  []string `json:"missing_skills"`
}

type jobList struct {
	Jobs []GeneratedJob `json:"jobs"`
}

type Generator struct {
	ai     llm.Completer
	count  int
	logger *slog.Logger
}

// NewGenerator asks for count jobs per call, clamped to 5..7.
func NewGenerator(ai llm.Completer, count int, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	count = max(MinGenerated, min(MaxGenerated, count))
	return &Generator{ai: ai, count: count, logger: logger}
}

// Generate requests job postings for the given skills. Returned errors are
// classified in the matching phase.
func (g *Generator) Generate(ctx context.Context, subject string, skills []string, experienceSummary string) ([]GeneratedJob, error) {
	if experienceSummary == "" {
		experienceSummary = "Not available."
	}
	system, user, err := prompt.Build(prompt.JobGeneration, map[string]string{
		"count":              strconv.Itoa(g.count),
		"skills":             strings.Join(skills, ", "),
		"experience_summary": experienceSummary,
	})
	if err != nil {
		return nil, apperr.New(apperr.KindUnknown, apperr.PhaseMatching, err)
	}

	resp, err := g.ai.Complete(ctx, llm.CompletionRequest{
		System:      system,
		User:        user,
		JSONMode:    true,
		Temperature: 0.7,
		MaxTokens:   3000,
		Endpoint:    "job-generation",
		Subject:     subject,
	})
	if err != nil {
		return nil, apperr.Classify(fmt.Errorf("llm complete: %w", err), apperr.PhaseMatching)
	}

	var list jobList
	if err := jobListSchema.Decode([]byte(resp.Content), &list); err != nil {
		g.logger.Warn("generated job list rejected", "subject", subject, "error", err)
		return nil, apperr.New(apperr.KindAPI, apperr.PhaseMatching, err).WithMessage(InvalidJobListMessage)
	}

	jobs := list.Jobs
	if len(jobs) > g.count {
		jobs = jobs[:g.count]
	}
	return jobs, nil
}
