package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/document"
	"github.com/nikhilbhutani/resumeflow/internal/lifecycle"
	"github.com/nikhilbhutani/resumeflow/internal/lock"
	"github.com/nikhilbhutani/resumeflow/internal/matching"
	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/parser"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
	"github.com/nikhilbhutani/resumeflow/pkg/textextract"
)

type Downloader interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, resumeID uuid.UUID, doc *models.ParsedDocument) (*models.Analysis, error)
}

type Matcher interface {
	FindMatches(ctx context.Context, resumeID uuid.UUID, opts matching.Options) (*matching.Result, error)
}

type Deps struct {
	Store     repository.Store
	Objects   Downloader
	Extractor document.TextExtractor
	Analyzer  Analyzer
	Matcher   Matcher
	Executor  *Executor
	Locker    lock.Locker
	Logger    *slog.Logger
}

// Runner executes tasks. Each stage runs under the executor and ends with a
// status transition; a later stage only starts from its predecessor status.
type Runner struct {
	store     repository.Store
	objects   Downloader
	extractor document.TextExtractor
	analyzer  Analyzer
	matcher   Matcher
	exec      *Executor
	locker    lock.Locker
	machine   *lifecycle.Machine
	cfg       config.PipelineConfig
	logger    *slog.Logger
}

func NewRunner(deps Deps, cfg config.PipelineConfig) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:     deps.Store,
		objects:   deps.Objects,
		extractor: deps.Extractor,
		analyzer:  deps.Analyzer,
		matcher:   deps.Matcher,
		exec:      deps.Executor,
		locker:    deps.Locker,
		machine:   lifecycle.NewMachine(deps.Store, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

func (r *Runner) stage(phase apperr.Phase) Stage {
	switch phase {
	case apperr.PhaseAnalysis:
		return Stage{Phase: phase, MaxAttempts: r.cfg.AnalysisMaxAttempts}
	case apperr.PhaseMatching:
		return Stage{Phase: phase, MaxAttempts: r.cfg.MatchingMaxAttempts}
	}
	return Stage{Phase: apperr.PhaseTextExtraction, MaxAttempts: r.cfg.ExtractionMaxAttempts}
}

// Run executes t to completion and releases its lock.
func (r *Runner) Run(ctx context.Context, t Task) error {
	defer r.release(t)

	log := r.logger.With("resume_id", t.ResumeID, "task", t.Kind)
	log.Info("task started", "force", t.Force)

	var err error
	switch t.Kind {
	case TaskProcess:
		err = r.runProcess(ctx, t)
	case TaskAnalyze:
		err = r.runAnalyze(ctx, t)
	case TaskMatch:
		_, err = r.Match(ctx, t.ResumeID, matching.Options{Force: t.Force, Mode: t.Mode})
	default:
		err = fmt.Errorf("unknown task kind %q", t.Kind)
	}

	if err != nil {
		log.Warn("task finished with error", "error", err)
		return err
	}
	log.Info("task finished")
	return nil
}

func (r *Runner) runProcess(ctx context.Context, t Task) error {
	res, err := r.Extract(ctx, t.ResumeID)
	if err != nil || !r.cfg.AutoAdvance {
		return err
	}
	res, err = r.machine.Transition(ctx, res, models.StatusAnalyzing, nil)
	if err != nil {
		return err
	}
	return r.continueFromAnalyzing(ctx, res, t)
}

func (r *Runner) runAnalyze(ctx context.Context, t Task) error {
	res, err := r.store.GetResume(ctx, t.ResumeID)
	if err != nil {
		return fmt.Errorf("load resume: %w", err)
	}
	return r.continueFromAnalyzing(ctx, res, t)
}

func (r *Runner) continueFromAnalyzing(ctx context.Context, res *models.Resume, t Task) error {
	res, err := r.Analyze(ctx, res)
	if err != nil || !r.cfg.AutoAdvance {
		return err
	}
	_, err = r.Match(ctx, res.ID, matching.Options{Force: t.Force, Mode: t.Mode})
	return err
}

// Extract runs download, extraction, validation and parsing for a resume in
// the parsing status and moves it to parsed, parsed_with_warnings or failed.
func (r *Runner) Extract(ctx context.Context, resumeID uuid.UUID) (*models.Resume, error) {
	res, err := r.store.GetResume(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("load resume: %w", err)
	}
	if res.Status != models.StatusParsing {
		return nil, fmt.Errorf("%w: extraction needs status %s, resume is %s", lifecycle.ErrIllegalTransition, models.StatusParsing, res.Status)
	}

	var doc *models.ParsedDocument
	cause := r.exec.Run(ctx, resumeID, r.stage(apperr.PhaseTextExtraction), func(ctx context.Context, attempt int) error {
		d, err := r.extractOnce(ctx, res)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if cause != nil {
		return r.fail(ctx, res, models.StatusFailed, cause)
	}

	next := models.StatusParsed
	if len(doc.Warnings) > 0 {
		next = models.StatusParsedWithWarnings
	}
	return r.machine.Transition(ctx, res, next, nil)
}

func (r *Runner) extractOnce(ctx context.Context, res *models.Resume) (*models.ParsedDocument, error) {
	data, err := r.objects.Download(ctx, res.FilePath)
	if err != nil {
		return nil, apperr.Classify(fmt.Errorf("download %s: %w", res.FilePath, err), apperr.PhaseFileDownload)
	}
	if limit := r.cfg.MaxFileSize(); limit > 0 && int64(len(data)) > limit {
		return nil, apperr.Newf(apperr.KindFileTooLarge, apperr.PhaseFileDownload, "file is %d bytes, limit is %d", len(data), limit)
	}

	format, err := formatOf(res)
	if err != nil {
		return nil, apperr.New(apperr.KindUnsupportedFileType, apperr.PhaseTextExtraction, err)
	}

	out, err := r.extractor.Extract(ctx, data, format)
	if err != nil {
		return nil, err
	}

	v := document.Validate(out.Text, out.Metadata)
	if !v.IsValid {
		return nil, apperr.Newf(apperr.KindEmptyDocument, apperr.PhaseTextExtraction, "no text extracted")
	}

	warnings := append(append([]string{}, out.Metadata.Warnings...), v.Warnings...)
	meta := out.Metadata
	meta.Warnings = warnings

	parsed := parser.Parse(out.Text)
	doc := &models.ParsedDocument{
		ResumeID:   res.ID,
		RawText:    out.Text,
		ParsedData: parsed.Data,
		Metadata:   meta,
		Confidence: parsed.Confidence,
		Warnings:   warnings,
	}
	if err := r.store.ReplaceParsedDocument(ctx, doc); err != nil {
		return nil, apperr.Classify(fmt.Errorf("store parsed document: %w", err), apperr.PhaseDatabaseStorage)
	}

	r.logger.Info("resume text extracted",
		"resume_id", res.ID,
		"format", meta.Format,
		"method", meta.Method,
		"chars", meta.CharCount,
		"warnings", len(warnings),
		"confidence", parsed.Confidence,
	)
	return doc, nil
}

func formatOf(res *models.Resume) (textextract.Format, error) {
	switch f := textextract.Format(res.FileType); f {
	case textextract.FormatPDF, textextract.FormatDOCX, textextract.FormatDOC, textextract.FormatImage, textextract.FormatTXT:
		return f, nil
	}
	return textextract.Detect(res.MimeType, res.FileName)
}

// Analyze runs the analysis stage for a resume in the analyzing status and
// moves it to analyzed or analysis_failed.
func (r *Runner) Analyze(ctx context.Context, res *models.Resume) (*models.Resume, error) {
	if res.Status != models.StatusAnalyzing {
		return nil, fmt.Errorf("%w: analysis needs status %s, resume is %s", lifecycle.ErrIllegalTransition, models.StatusAnalyzing, res.Status)
	}

	doc, err := r.store.GetParsedDocument(ctx, res.ID)
	if err != nil {
		cause := apperr.Classify(fmt.Errorf("load parsed document: %w", err), apperr.PhaseDatabaseStorage)
		if errors.Is(err, repository.ErrNotFound) {
			cause = apperr.New(apperr.KindInvalidState, apperr.PhaseAnalysis, err).
				WithMessage("The resume has no extracted text to analyse.").
				WithRecovery("Reprocess the resume before analysing it.")
		}
		return r.fail(ctx, res, models.StatusAnalysisFailed, cause)
	}

	cause := r.exec.Run(ctx, res.ID, r.stage(apperr.PhaseAnalysis), func(ctx context.Context, attempt int) error {
		_, err := r.analyzer.Analyze(ctx, res.ID, doc)
		return err
	})
	if cause != nil {
		return r.fail(ctx, res, models.StatusAnalysisFailed, cause)
	}
	return r.machine.Transition(ctx, res, models.StatusAnalyzed, nil)
}

// Match runs the matching stage for an analysed resume. Success moves
// analyzed to completed; failure is recorded on the resume without a status
// change.
func (r *Runner) Match(ctx context.Context, resumeID uuid.UUID, opts matching.Options) (*matching.Result, error) {
	res, err := r.store.GetResume(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("load resume: %w", err)
	}
	if res.Status != models.StatusAnalyzed && res.Status != models.StatusCompleted {
		return nil, apperr.Newf(apperr.KindInvalidState, apperr.PhaseMatching, "matching needs an analysed resume, status is %s", res.Status).
			WithMessage("The resume must be analysed before jobs can be matched.").
			WithRecovery("Run the analysis first.")
	}

	var result *matching.Result
	cause := r.exec.Run(ctx, resumeID, r.stage(apperr.PhaseMatching), func(ctx context.Context, attempt int) error {
		out, err := r.matcher.FindMatches(ctx, resumeID, matching.Options{
			// a retry must not wipe what the failed attempt wrote and then reuse nothing
			Force: opts.Force || attempt > 1,
			Mode:  opts.Mode,
		})
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if cause != nil {
		if err := r.store.RecordError(ctx, resumeID, cause.UserMessage, string(cause.Kind), cause.RecoveryAction); err != nil {
			r.logger.Error("record matching error", "resume_id", resumeID, "error", err)
		}
		return nil, cause
	}

	if res.Status == models.StatusAnalyzed {
		if _, err := r.machine.Transition(ctx, res, models.StatusCompleted, nil); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// fail finalizes a stage failure and returns the cause.
func (r *Runner) fail(ctx context.Context, res *models.Resume, to models.ResumeStatus, cause *apperr.Error) (*models.Resume, error) {
	if _, err := r.machine.Transition(ctx, res, to, cause); err != nil {
		r.logger.Error("finalize failed stage",
			"resume_id", res.ID,
			"to", to,
			"error_type", cause.Kind,
			"error", err,
		)
		return nil, errors.Join(cause, err)
	}
	return nil, cause
}

func (r *Runner) release(t Task) {
	if t.LockToken == "" || r.locker == nil {
		return
	}
	if err := r.locker.Release(context.Background(), t.ResumeID, t.LockToken); err != nil {
		r.logger.Warn("release resume lock", "resume_id", t.ResumeID, "error", err)
	}
}
