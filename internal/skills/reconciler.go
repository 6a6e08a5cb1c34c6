// Package skills merges parsed and AI-derived skills into the global skill
// catalogue and links them to a resume.
package skills

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
)

type Reconciler struct {
	repo   repository.SkillRepository
	logger *slog.Logger
}

func NewReconciler(repo repository.SkillRepository, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{repo: repo, logger: logger}
}

type candidate struct {
	name     string
	category models.SkillCategory // empty when the name needs a heuristic category
}

// Merge deduplicates names case-insensitively. AI categories win over the
// heuristic, and the first spelling seen is kept.
func Merge(parsed []string, ai models.AnalysisSkills) []candidate {
	var out []candidate
	index := make(map[string]int)
	add := func(name string, cat models.SkillCategory) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if i, ok := index[key]; ok {
			if out[i].category == "" {
				out[i].category = cat
			}
			return
		}
		index[key] = len(out)
		out = append(out, candidate{name: name, category: cat})
	}

	for _, n := range ai.Technical {
		add(n, models.SkillTechnical)
	}
	for _, n := range ai.Soft {
		add(n, models.SkillSoft)
	}
	for _, n := range ai.Tools {
		add(n, models.SkillTool)
	}
	for _, n := range parsed {
		add(n, "")
	}
	return out
}

// Reconcile upserts every unique skill and links it to the resume at the
// default level. It returns the linked skills in merge order.
func (r *Reconciler) Reconcile(ctx context.Context, resumeID uuid.UUID, parsed []string, ai models.AnalysisSkills) ([]models.Skill, error) {
	candidates := Merge(parsed, ai)
	linked := make([]models.Skill, 0, len(candidates))
	created := 0

	for _, c := range candidates {
		sk, err := r.repo.FindSkillByName(ctx, c.name)
		if errors.Is(err, repository.ErrNotFound) {
			cat := c.category
			if cat == "" {
				cat = Categorize(c.name)
			}
			sk, err = r.repo.CreateSkill(ctx, &models.Skill{Name: c.name, Category: cat})
			created++
		}
		if err != nil {
			return nil, fmt.Errorf("resolve skill %q: %w", c.name, err)
		}

		link := models.ResumeSkill{ResumeID: resumeID, SkillID: sk.ID, Level: models.LevelIntermediate}
		if err := r.repo.LinkResumeSkill(ctx, link); err != nil {
			return nil, fmt.Errorf("link skill %q: %w", c.name, err)
		}
		linked = append(linked, *sk)
	}

	r.logger.Info("skills reconciled",
		"resume_id", resumeID,
		"linked", len(linked),
		"created", created,
	)
	return linked, nil
}
