package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/lifecycle"
	"github.com/nikhilbhutani/resumeflow/internal/lock"
	"github.com/nikhilbhutani/resumeflow/internal/matching"
	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
	"github.com/nikhilbhutani/resumeflow/pkg/textextract"
)

// MatchSampleSize is how many matches FindMatches returns inline.
const MatchSampleSize = 5

type Uploader interface {
	Upload(ctx context.Context, path string, data io.Reader, size int64, contentType string) error
}

// Accepted is the reply to a request that started a background attempt.
type Accepted struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	StatusEndpoint string `json:"statusEndpoint"`
}

type StatusView struct {
	ResumeID               uuid.UUID           `json:"resumeId"`
	Status                 models.ResumeStatus `json:"status"`
	Error                  *string             `json:"error"`
	ErrorType              string              `json:"errorType,omitempty"`
	ProgressPercentage     int                 `json:"progressPercentage"`
	EstimatedTimeRemaining int                 `json:"estimatedTimeRemaining"`
	RecoverySuggestion     string              `json:"recoverySuggestion,omitempty"`
	StatusDescription      string              `json:"statusDescription"`
	Version                int                 `json:"version"`
}

type Detail struct {
	Resume   *models.Resume         `json:"resume"`
	Document *models.ParsedDocument `json:"parsedDocument,omitempty"`
	Analysis *models.Analysis       `json:"analysis,omitempty"`
}

type MatchSummary struct {
	Success bool              `json:"success"`
	Mode    matching.Mode     `json:"mode"`
	Reused  bool              `json:"reused"`
	Total   int               `json:"totalMatches"`
	Matches []models.JobMatch `json:"matches"`
}

type UploadRequest struct {
	Owner       uuid.UUID
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service holds the entry points behind the HTTP API. Each validates the
// request, moves the resume status synchronously and then dispatches the
// background work.
type Service struct {
	store      repository.Store
	objects    Uploader
	runner     *Runner
	dispatcher Dispatcher
	exec       *Executor
	locker     lock.Locker
	machine    *lifecycle.Machine
	cfg        config.PipelineConfig
	now        func() time.Time
	logger     *slog.Logger
}

func NewService(store repository.Store, objects Uploader, runner *Runner, dispatcher Dispatcher, cfg config.PipelineConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Minute
	}
	return &Service{
		store:      store,
		objects:    objects,
		runner:     runner,
		dispatcher: dispatcher,
		exec:       runner.exec,
		locker:     runner.locker,
		machine:    lifecycle.NewMachine(store, logger),
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

func StatusEndpoint(id uuid.UUID) string {
	return "/api/v1/resumes/" + id.String() + "/status"
}

// Upload stores the file and creates a resume in the uploaded status.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Resume, error) {
	if limit := s.cfg.MaxFileSize(); limit > 0 && req.Size > limit {
		return nil, apperr.Newf(apperr.KindFileTooLarge, apperr.PhaseProcessing, "upload is %d bytes, limit is %d", req.Size, limit)
	}
	format, err := textextract.Detect(req.ContentType, req.FileName)
	if err != nil {
		return nil, apperr.New(apperr.KindUnsupportedFileType, apperr.PhaseProcessing, err)
	}

	id := uuid.New()
	owner := req.Owner.String()
	if req.Owner == uuid.Nil {
		owner = "anonymous"
	}
	objectPath := path.Join(owner, id.String(), path.Base(req.FileName))

	contentType := req.ContentType
	if contentType == "" {
		contentType = textextract.MIMEType(format)
	}
	if err := s.objects.Upload(ctx, objectPath, req.Body, req.Size, contentType); err != nil {
		return nil, apperr.Classify(fmt.Errorf("upload %s: %w", objectPath, err), apperr.PhaseProcessing)
	}

	res := &models.Resume{
		ID:            id,
		UserID:        req.Owner,
		FileName:      req.FileName,
		FilePath:      objectPath,
		FileType:      string(format),
		MimeType:      req.ContentType,
		FileSizeBytes: req.Size,
		Status:        models.StatusUploaded,
	}
	if err := s.store.CreateResume(ctx, res); err != nil {
		return nil, apperr.Classify(fmt.Errorf("create resume: %w", err), apperr.PhaseDatabaseStorage)
	}
	s.logger.Info("resume uploaded", "resume_id", id, "format", format, "size", req.Size)
	return res, nil
}

// ProcessResume starts extraction. Without force only an uploaded resume is
// accepted; with force any resume that is not running is reprocessed from
// scratch after its derived data is cleared.
func (s *Service) ProcessResume(ctx context.Context, owner, id uuid.UUID, force bool) (*Accepted, error) {
	check := func(r *models.Resume) error {
		if r.Status.InFlight() && !force {
			return conflict(r)
		}
		if !force && r.Status != models.StatusUploaded {
			return apperr.Newf(apperr.KindInvalidState, apperr.PhaseProcessing, "resume is %s", r.Status).
				WithMessage("This resume has already been processed.").
				WithRecovery("Retry with force=true to process it again.")
		}
		return nil
	}
	res, token, err := s.begin(ctx, owner, id, apperr.PhaseTextExtraction, check)
	if err != nil {
		return nil, err
	}

	if force {
		res, err = s.reset(ctx, res)
	} else {
		res, err = s.machine.Transition(ctx, res, models.StatusParsing, nil)
	}
	if err != nil {
		s.releaseLock(id, token)
		return nil, s.transitionError(err, apperr.PhaseProcessing)
	}

	t := Task{Kind: TaskProcess, ResumeID: id, Force: force, LockToken: token}
	if err := s.dispatch(ctx, res, t, models.StatusFailed); err != nil {
		return nil, err
	}

	msg := "Resume processing started"
	if force {
		msg = "Resume reprocessing started"
	}
	return &Accepted{Success: true, Message: msg, StatusEndpoint: StatusEndpoint(id)}, nil
}

// reset moves a resume through reprocessing back to parsing, clearing every
// row derived from the previous run in between.
func (s *Service) reset(ctx context.Context, res *models.Resume) (*models.Resume, error) {
	res, err := s.machine.Transition(ctx, res, models.StatusReprocessing, nil)
	if err != nil {
		return nil, err
	}
	if err := s.store.ClearDerived(ctx, res.ID); err != nil {
		cause := apperr.Classify(fmt.Errorf("clear derived data: %w", err), apperr.PhaseDatabaseStorage)
		if _, terr := s.machine.Transition(ctx, res, models.StatusFailed, cause); terr != nil {
			s.logger.Error("mark resume failed", "resume_id", res.ID, "error", terr)
		}
		return nil, cause
	}
	return s.machine.Transition(ctx, res, models.StatusParsing, nil)
}

// Analyze starts the analysis stage. A parsed resume is always accepted; an
// analysed, completed or failed analysis needs force.
func (s *Service) Analyze(ctx context.Context, owner, id uuid.UUID, force bool) (*Accepted, error) {
	check := func(r *models.Resume) error {
		switch {
		case r.Status.InFlight():
			return conflict(r)
		case r.Status.IsParsed():
			return nil
		case force && (r.Status == models.StatusAnalyzed || r.Status == models.StatusCompleted || r.Status == models.StatusAnalysisFailed):
			return nil
		case r.Status == models.StatusAnalyzed || r.Status == models.StatusCompleted || r.Status == models.StatusAnalysisFailed:
			return apperr.Newf(apperr.KindInvalidState, apperr.PhaseAnalysis, "resume is %s", r.Status).
				WithMessage("This resume has already been analysed.").
				WithRecovery("Retry with force=true to analyse it again.")
		}
		return apperr.Newf(apperr.KindInvalidState, apperr.PhaseAnalysis, "resume is %s", r.Status).
			WithMessage("The resume text has not been extracted yet.").
			WithRecovery("Process the resume before analysing it.")
	}
	res, token, err := s.begin(ctx, owner, id, apperr.PhaseAnalysis, check)
	if err != nil {
		return nil, err
	}

	res, err = s.machine.Transition(ctx, res, models.StatusAnalyzing, nil)
	if err != nil {
		s.releaseLock(id, token)
		return nil, s.transitionError(err, apperr.PhaseAnalysis)
	}

	t := Task{Kind: TaskAnalyze, ResumeID: id, Force: force, LockToken: token}
	if err := s.dispatch(ctx, res, t, models.StatusAnalysisFailed); err != nil {
		return nil, err
	}
	return &Accepted{Success: true, Message: "Resume analysis started", StatusEndpoint: StatusEndpoint(id)}, nil
}

// FindMatches runs matching synchronously and returns the best matches.
func (s *Service) FindMatches(ctx context.Context, owner, id uuid.UUID, opts matching.Options) (*MatchSummary, error) {
	check := func(r *models.Resume) error {
		if r.Status.InFlight() {
			return conflict(r)
		}
		if r.Status != models.StatusAnalyzed && r.Status != models.StatusCompleted {
			return apperr.Newf(apperr.KindInvalidState, apperr.PhaseMatching, "resume is %s", r.Status).
				WithMessage("The resume must be analysed before jobs can be matched.").
				WithRecovery("Run the analysis first.")
		}
		return nil
	}
	_, token, err := s.begin(ctx, owner, id, apperr.PhaseMatching, check)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(id, token)

	result, err := s.runner.Match(ctx, id, opts)
	if err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, staleConflict(err)
		}
		return nil, apperr.Classify(err, apperr.PhaseMatching)
	}
	return &MatchSummary{
		Success: true,
		Mode:    result.Mode,
		Reused:  result.Reused,
		Total:   result.Total,
		Matches: result.Top(MatchSampleSize),
	}, nil
}

// Status reports the polling view of a resume.
func (s *Service) Status(ctx context.Context, owner, id uuid.UUID) (*StatusView, error) {
	res, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	p := lifecycle.Estimate(res, s.now())
	v := &StatusView{
		ResumeID:               res.ID,
		Status:                 res.Status,
		Error:                  res.ProcessingError,
		ErrorType:              res.ProcessingErrorCode,
		ProgressPercentage:     p.Percentage,
		EstimatedTimeRemaining: p.EstimatedTimeRemaining,
		StatusDescription:      p.Description,
		Version:                res.Version,
	}
	if res.ProcessingError != nil {
		v.RecoverySuggestion = res.ProcessingRecovery
		if v.RecoverySuggestion == "" {
			v.RecoverySuggestion = apperr.RecoveryAction(apperr.Kind(res.ProcessingErrorCode))
		}
	}
	return v, nil
}

// Get returns the resume with its parsed document and latest analysis when
// they exist.
func (s *Service) Get(ctx context.Context, owner, id uuid.UUID) (*Detail, error) {
	res, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Resume: res}
	if d.Document, err = s.store.GetParsedDocument(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Classify(fmt.Errorf("load parsed document: %w", err), apperr.PhaseDatabaseStorage)
	}
	if d.Analysis, err = s.store.LatestAnalysis(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Classify(fmt.Errorf("load analysis: %w", err), apperr.PhaseDatabaseStorage)
	}
	return d, nil
}

// Matches lists the persisted matches of a resume, best first.
func (s *Service) Matches(ctx context.Context, owner, id uuid.UUID, limit int) ([]models.JobMatch, error) {
	if _, err := s.load(ctx, owner, id); err != nil {
		return nil, err
	}
	out, err := s.store.ListMatches(ctx, id, limit)
	if err != nil {
		return nil, apperr.Classify(fmt.Errorf("list matches: %w", err), apperr.PhaseDatabaseStorage)
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, owner, id uuid.UUID) (*models.Resume, error) {
	res, err := s.store.GetResume(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, apperr.PhaseProcessing, err)
	}
	if err != nil {
		return nil, apperr.Classify(fmt.Errorf("load resume: %w", err), apperr.PhaseDatabaseStorage)
	}
	// a resume owned by someone else is reported as missing
	if owner != uuid.Nil && res.UserID != owner {
		return nil, apperr.Newf(apperr.KindNotFound, apperr.PhaseProcessing, "resume %s not owned by %s", id, owner)
	}
	return res, nil
}

// begin validates a trigger and takes the resume lock. The resume is read
// again under the lock so the returned copy carries the current version.
func (s *Service) begin(ctx context.Context, owner, id uuid.UUID, phase apperr.Phase, check func(*models.Resume) error) (*models.Resume, string, error) {
	res, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, "", err
	}
	if err := check(res); err != nil {
		return nil, "", err
	}
	if err := s.exec.Guard(ctx, id, phase); err != nil {
		return nil, "", err
	}

	token, err := s.locker.Acquire(ctx, id, s.cfg.LockTTL)
	if errors.Is(err, lock.ErrHeld) {
		return nil, "", conflict(res)
	}
	if err != nil {
		return nil, "", apperr.Classify(fmt.Errorf("acquire resume lock: %w", err), apperr.PhaseProcessing)
	}

	res, err = s.load(ctx, owner, id)
	if err == nil {
		err = check(res)
	}
	if err != nil {
		s.releaseLock(id, token)
		return nil, "", err
	}
	return res, token, nil
}

func (s *Service) dispatch(ctx context.Context, res *models.Resume, t Task, failTo models.ResumeStatus) error {
	err := s.dispatcher.Dispatch(ctx, t)
	if err == nil {
		return nil
	}
	s.releaseLock(t.ResumeID, t.LockToken)

	cause := apperr.Classify(fmt.Errorf("dispatch %s task: %w", t.Kind, err), apperr.PhaseProcessing)
	if _, terr := s.machine.Transition(ctx, res, failTo, cause); terr != nil {
		s.logger.Error("mark resume failed after dispatch error", "resume_id", res.ID, "error", terr)
	}
	return cause
}

func (s *Service) releaseLock(id uuid.UUID, token string) {
	if err := s.locker.Release(context.Background(), id, token); err != nil {
		s.logger.Warn("release resume lock", "resume_id", id, "error", err)
	}
}

func (s *Service) transitionError(err error, phase apperr.Phase) error {
	switch {
	case errors.Is(err, repository.ErrStaleVersion):
		return staleConflict(err)
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return apperr.New(apperr.KindInvalidState, phase, err)
	}
	return apperr.Classify(err, phase)
}

func conflict(r *models.Resume) *apperr.Error {
	return apperr.Newf(apperr.KindConflict, apperr.PhaseProcessing, "resume %s is busy (status %s)", r.ID, r.Status)
}

func staleConflict(err error) *apperr.Error {
	return apperr.New(apperr.KindConflict, apperr.PhaseProcessing, err).
		WithMessage("The resume was changed by another request.").
		WithRecovery("Reload the resume status and try again.")
}
