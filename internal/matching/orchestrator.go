// Package matching finds jobs for a resume, either by scoring the local
// job/skill graph or by asking the AI service for postings, and persists
// the matches.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
)

type Mode string

const (
	ModeGraph      Mode = "graph"
	ModeGenerative Mode = "generative"
)

// ParseMode returns fallback for an empty value.
func ParseMode(s string, fallback Mode) (Mode, error) {
	switch Mode(s) {
	case "":
		return fallback, nil
	case ModeGraph, ModeGenerative:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown matching mode %q", s)
}

type Store interface {
	repository.DocumentRepository
	repository.AnalysisRepository
	repository.SkillRepository
	repository.JobRepository
	repository.MatchRepository
}

type Options struct {
	Force bool
	Mode  Mode
}

type Result struct {
	Mode    Mode              `json:"mode"`
	Reused  bool              `json:"reused"`
	Cleared int64             `json:"cleared"`
	Total   int               `json:"total"`
	Matches []models.JobMatch `json:"matches"`
}

// Top returns the n best matches.
func (r *Result) Top(n int) []models.JobMatch {
	if len(r.Matches) <= n {
		return r.Matches
	}
	return r.Matches[:n]
}

type Orchestrator struct {
	store     Store
	generator *Generator
	cfg       config.MatchingConfig
	logger    *slog.Logger
}

func NewOrchestrator(store Store, generator *Generator, cfg config.MatchingConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = string(ModeGraph)
	}
	return &Orchestrator{store: store, generator: generator, cfg: cfg, logger: logger}
}

// FindMatches computes and stores matches for a resume. Without Force,
// existing matches are returned as they are. With Force, stored matches are
// deleted before anything new is written. Every returned error is an
// *apperr.Error.
func (o *Orchestrator) FindMatches(ctx context.Context, resumeID uuid.UUID, opts Options) (*Result, error) {
	mode := opts.Mode
	if mode == "" {
		mode = Mode(o.cfg.DefaultMode)
	}
	res := &Result{Mode: mode}

	if opts.Force {
		n, err := o.store.DeleteMatches(ctx, resumeID)
		if err != nil {
			return nil, dbErr("delete matches", err)
		}
		res.Cleared = n
	} else {
		existing, err := o.store.ListMatches(ctx, resumeID, o.cfg.MaxResults)
		if err != nil {
			return nil, dbErr("list matches", err)
		}
		if len(existing) > 0 {
			res.Reused = true
			res.Matches = existing
			res.Total = len(existing)
			return res, nil
		}
	}

	set, err := o.skillSet(ctx, resumeID)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, apperr.Newf(apperr.KindInvalidState, apperr.PhaseMatching, "resume %s has no skills", resumeID).
			WithMessage("No skills were found on this resume, so no jobs could be matched.").
			WithRecovery("Run the analysis again or add a skills section to the resume.")
	}

	var matches []models.JobMatch
	if mode == ModeGraph {
		matches, err = o.graphMatches(ctx, resumeID, set)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 && o.cfg.GenerativeFallback && o.generator != nil {
			o.logger.Info("no graph candidates, falling back to generative matching", "resume_id", resumeID)
			res.Mode = ModeGenerative
		}
	}
	if res.Mode == ModeGenerative {
		if o.generator == nil {
			return nil, apperr.Newf(apperr.KindInvalidState, apperr.PhaseMatching, "generative matching is not configured")
		}
		matches, err = o.generativeMatches(ctx, resumeID, set)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].MatchScore > matches[j].MatchScore })
	if len(matches) > o.cfg.MaxResults {
		matches = matches[:o.cfg.MaxResults]
	}
	res.Matches = matches
	res.Total = len(matches)

	o.logger.Info("job matches stored",
		"resume_id", resumeID,
		"mode", res.Mode,
		"total", res.Total,
		"cleared", res.Cleared,
	)
	return res, nil
}

// skillSet prefers reconciled skills and falls back to the parser's list.
func (o *Orchestrator) skillSet(ctx context.Context, resumeID uuid.UUID) (SkillSet, error) {
	linked, err := o.store.ListResumeSkills(ctx, resumeID)
	if err != nil {
		return SkillSet{}, dbErr("list resume skills", err)
	}
	if len(linked) > 0 {
		return NewSkillSet(linked), nil
	}

	doc, err := o.store.GetParsedDocument(ctx, resumeID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewSkillSet(nil), nil
	}
	if err != nil {
		return SkillSet{}, dbErr("get parsed document", err)
	}
	return NewSkillSet(nil, doc.ParsedData.Skills...), nil
}

func (o *Orchestrator) graphMatches(ctx context.Context, resumeID uuid.UUID, set SkillSet) ([]models.JobMatch, error) {
	jobs, err := o.store.ListJobsWithSkills(ctx)
	if err != nil {
		return nil, dbErr("list jobs", err)
	}

	scored := ScoreJobs(set, jobs)
	if len(scored) > o.cfg.MaxResults {
		scored = scored[:o.cfg.MaxResults]
	}

	matches := make([]models.JobMatch, 0, len(scored))
	for _, s := range scored {
		job := s.Job
		m := models.JobMatch{
			ResumeID:   resumeID,
			JobID:      job.ID,
			MatchScore: s.Score,
			Details: models.MatchDetails{
				MatchingSkills: s.MatchingSkills,
				MissingSkills:  s.MissingSkills,
			},
		}
		if err := o.store.UpsertMatch(ctx, &m); err != nil {
			return nil, dbErr("upsert match", err)
		}
		m.Job = &job
		matches = append(matches, m)
	}
	return matches, nil
}

func (o *Orchestrator) generativeMatches(ctx context.Context, resumeID uuid.UUID, set SkillSet) ([]models.JobMatch, error) {
	summary := ""
	if a, err := o.store.LatestAnalysis(ctx, resumeID); err == nil {
		summary = a.ExperienceSummary
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, dbErr("get latest analysis", err)
	}

	generated, err := o.generator.Generate(ctx, resumeID.String(), set.Names(), summary)
	if err != nil {
		return nil, err
	}
	generated = uniqueGenerated(generated)

	matches := make([]models.JobMatch, len(generated))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, gj := range generated {
		g.Go(func() error {
			job, err := o.store.UpsertJob(gctx, &models.Job{
				Title:        gj.Title,
				Company:      gj.Company,
				Location:     gj.Location,
				JobTypes:     gj.JobTypes,
				Description:  gj.Description,
				Requirements: gj.Requirements,
				SalaryMin:    roundPtr(gj.SalaryMin),
				SalaryMax:    roundPtr(gj.SalaryMax),
				Source:       models.JobSourceAIGenerated,
			})
			if err != nil {
				return fmt.Errorf("upsert generated job %q: %w", gj.Title, err)
			}
			m := models.JobMatch{
				ResumeID:   resumeID,
				JobID:      job.ID,
				MatchScore: clamp(gj.MatchScore),
				Details: models.MatchDetails{
					MatchingSkills: nonNil(gj.MatchingSkills),
					MissingSkills:  nonNil(gj.MissingSkills),
					AIGenerated:    true,
				},
			}
			if err := o.store.UpsertMatch(gctx, &m); err != nil {
				return fmt.Errorf("upsert generated match %q: %w", gj.Title, err)
			}
			m.Job = job
			matches[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Classify(err, apperr.PhaseDatabaseStorage)
	}
	return matches, nil
}

// uniqueGenerated keeps the first posting of each (title, company) pair.
// Jobs upsert on that pair, so a duplicate would race its twin onto the
// same row.
func uniqueGenerated(jobs []GeneratedJob) []GeneratedJob {
	type key struct{ title, company string }
	seen := make(map[key]bool, len(jobs))
	out := make([]GeneratedJob, 0, len(jobs))
	for _, j := range jobs {
		k := key{j.Title, j.Company}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, j)
	}
	return out
}

func dbErr(op string, err error) *apperr.Error {
	return apperr.Classify(fmt.Errorf("%s: %w", op, err), apperr.PhaseDatabaseStorage)
}

func clamp(v float64) int {
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

func roundPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
