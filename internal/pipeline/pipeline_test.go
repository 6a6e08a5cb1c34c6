package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/resumeflow/internal/analysis"
	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/audit"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/document"
	"github.com/nikhilbhutani/resumeflow/internal/llm"
	"github.com/nikhilbhutani/resumeflow/internal/lock"
	"github.com/nikhilbhutani/resumeflow/internal/matching"
	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/ocr"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
	"github.com/nikhilbhutani/resumeflow/internal/repository/memory"
	"github.com/nikhilbhutani/resumeflow/internal/skills"
	"github.com/nikhilbhutani/resumeflow/internal/storage"
)

type fakeOCR struct {
	pdf *ocr.Result
	err error
}

func (f *fakeOCR) RecognizePDF(context.Context, []byte) (*ocr.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pdf, nil
}

func (f *fakeOCR) RecognizeImage(context.Context, []byte) (*ocr.Result, error) {
	return nil, ocr.ErrUnavailable
}

// scriptedAI answers analysis and job-generation prompts by endpoint.
type scriptedAI struct {
	mu       sync.Mutex
	analysis string
	calls    map[string]int
}

func (s *scriptedAI) Complete(_ context.Context, req llm.CompletionRequest) (*llm.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[req.Endpoint]++
	if req.Endpoint != "resume-analysis" {
		return nil, fmt.Errorf("openai: status 500: no generator in test")
	}
	return &llm.ChatResponse{Provider: "fake", Model: "fake-1", Content: s.analysis}, nil
}

func (s *scriptedAI) count(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

const goodAnalysis = `{
  "overall_score": 82,
  "skills": {"technical": ["Go", "PostgreSQL", "Docker", "REST", "Git"], "soft": ["Mentoring"], "tools": []},
  "experience_summary": "Backend engineer.",
  "education_summary": "BSc.",
  "strengths": ["APIs"],
  "improvement_areas": [],
  "ats_compatibility": {"score": 80, "issues": [], "recommendations": []},
  "keywords": ["go"]
}`

// recordingDispatcher keeps tasks for the test to run, or runs them at once
// when run is set.
type recordingDispatcher struct {
	runner *Runner
	run    bool
	tasks  []Task
	err    error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, t Task) error {
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, t)
	if d.run {
		_ = d.runner.Run(ctx, t)
	}
	return nil
}

type harness struct {
	store      *memory.Store
	objects    *storage.Memory
	attempts   *audit.Memory
	locker     *lock.Memory
	ai         *scriptedAI
	ocr        *fakeOCR
	runner     *Runner
	dispatcher *recordingDispatcher
	svc        *Service
}

func newHarness(t *testing.T, autoAdvance bool) *harness {
	t.Helper()
	ctx := context.Background()

	h := &harness{
		store:    memory.New(),
		objects:  storage.NewMemory(),
		attempts: audit.NewMemory(),
		locker:   lock.NewMemory(),
		ai:       &scriptedAI{analysis: goodAnalysis},
		ocr:      &fakeOCR{err: ocr.ErrUnavailable},
	}

	catalog, err := matching.LoadCatalog("")
	require.NoError(t, err)
	_, err = matching.Seed(ctx, h.store, catalog)
	require.NoError(t, err)

	cfg := config.PipelineConfig{
		AutoAdvance:           autoAdvance,
		MaxFileSizeMB:         1,
		ExtractionMaxAttempts: 3,
		AnalysisMaxAttempts:   2,
		MatchingMaxAttempts:   2,
		BackoffBase:           time.Millisecond,
		FailureThreshold:      5,
		FailureWindow:         10 * time.Minute,
		LockTTL:               time.Minute,
	}
	matcher := matching.NewOrchestrator(h.store, matching.NewGenerator(h.ai, 5, nil), config.MatchingConfig{
		DefaultMode: "graph",
		MaxResults:  20,
	}, nil)

	h.runner = NewRunner(Deps{
		Store:     h.store,
		Objects:   h.objects,
		Extractor: document.NewEngine(h.ocr, nil),
		Analyzer:  analysis.NewOrchestrator(h.ai, h.store, skills.NewReconciler(h.store, nil), nil),
		Matcher:   matcher,
		Executor:  NewExecutor(h.attempts, cfg, nil),
		Locker:    h.locker,
	}, cfg)
	h.dispatcher = &recordingDispatcher{runner: h.runner, run: true}
	h.svc = NewService(h.store, h.objects, h.runner, h.dispatcher, cfg, nil)
	return h
}

func (h *harness) upload(t *testing.T, name, contentType string, data []byte) *models.Resume {
	t.Helper()
	res, err := h.svc.Upload(context.Background(), UploadRequest{
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	require.NoError(t, err)
	return res
}

func (h *harness) resume(t *testing.T, id uuid.UUID) *models.Resume {
	t.Helper()
	r, err := h.store.GetResume(context.Background(), id)
	require.NoError(t, err)
	return r
}

func docx(t *testing.T, words int) []byte {
	t.Helper()
	const sentence = "Built reliable payment services in Go with PostgreSQL Docker REST and Git"
	perParagraph := len(strings.Fields(sentence))

	var body strings.Builder
	for i := 0; i < words/perParagraph; i++ {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>", sentence)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>%s</w:body></w:document>`, body.String())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func TestScannedPDFParsesWithWarnings(t *testing.T) {
	h := newHarness(t, false)
	h.ocr.err = nil
	h.ocr.pdf = &ocr.Result{Text: "Jane Doe\nGo Developer", Pages: 1, Confidence: 91}

	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0xff}, 111)...)
	require.Len(t, data, 120)
	res := h.upload(t, "scan.pdf", "application/pdf", data)

	accepted, err := h.svc.ProcessResume(context.Background(), uuid.Nil, res.ID, false)
	require.NoError(t, err)
	assert.True(t, accepted.Success)
	assert.Equal(t, "/api/v1/resumes/"+res.ID.String()+"/status", accepted.StatusEndpoint)

	got := h.resume(t, res.ID)
	assert.Equal(t, models.StatusParsedWithWarnings, got.Status)
	assert.Nil(t, got.ProcessingError)

	doc, err := h.store.GetParsedDocument(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, document.MethodPDFOCR, doc.Metadata.Method)
	assert.Contains(t, strings.Join(doc.Warnings, " "), "may be a scan")
}

func TestImageOnlyPDFWithoutOCRKeepsPlaceholder(t *testing.T) {
	h := newHarness(t, false)

	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0xff}, 111)...)
	require.Len(t, data, 120)
	res := h.upload(t, "scan.pdf", "application/pdf", data)

	_, err := h.svc.ProcessResume(context.Background(), uuid.Nil, res.ID, false)
	require.NoError(t, err)

	got := h.resume(t, res.ID)
	assert.Equal(t, models.StatusParsedWithWarnings, got.Status)
	assert.Nil(t, got.ProcessingError)

	doc, err := h.store.GetParsedDocument(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, document.ScannedPDFPlaceholder, doc.RawText)
	assert.Equal(t, document.MethodPDFPlaceholder, doc.Metadata.Method)
	assert.Contains(t, doc.Metadata.ProcessingNote, "image-based")
	assert.Contains(t, strings.Join(doc.Warnings, " "), "may be a scan")
}

func TestHeaderlessPDFWithoutOCRFails(t *testing.T) {
	h := newHarness(t, false)

	// no %PDF- header, the reader rejects it and OCR is unavailable
	res := h.upload(t, "scan.pdf", "application/pdf", make([]byte, 120))
	_, err := h.svc.ProcessResume(context.Background(), uuid.Nil, res.ID, false)
	require.NoError(t, err)

	got := h.resume(t, res.ID)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ProcessingError)
	assert.Equal(t, string(apperr.KindCorruptedFile), got.ProcessingErrorCode)
}

func TestForceReprocessRecoversFailedResume(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	res := h.upload(t, "resume.pdf", "application/pdf", make([]byte, 120))

	_, err := h.svc.ProcessResume(ctx, uuid.Nil, res.ID, false)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, h.resume(t, res.ID).Status)

	// without force a failed resume stays put
	_, err = h.svc.ProcessResume(ctx, uuid.Nil, res.ID, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	h.ocr.err = nil
	h.ocr.pdf = &ocr.Result{Text: "Jane Doe\nGo Developer", Pages: 1, Confidence: 90}
	fixed := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0xff}, 111)...)
	require.NoError(t, h.objects.Upload(ctx, res.FilePath, bytes.NewReader(fixed), int64(len(fixed)), "application/pdf"))

	_, err = h.svc.ProcessResume(ctx, uuid.Nil, res.ID, true)
	require.NoError(t, err)

	got := h.resume(t, res.ID)
	assert.Equal(t, models.StatusParsedWithWarnings, got.Status)
	assert.Nil(t, got.ProcessingError)
	assert.Empty(t, got.ProcessingErrorCode)
	assert.Empty(t, got.ProcessingRecovery)
}

func TestStatusReportsStoredRecovery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	res := h.upload(t, "resume.doc", "application/msword", []byte("not an office document"))

	_, err := h.svc.ProcessResume(ctx, uuid.Nil, res.ID, false)
	require.NoError(t, err)

	view, err := h.svc.Status(ctx, uuid.Nil, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, view.Status)
	assert.Equal(t, string(apperr.KindExtractionFailed), view.ErrorType)
	assert.Equal(t, "Open the file in a word processor, save it as DOCX or PDF, and re-upload.", view.RecoverySuggestion)
	assert.NotEqual(t, apperr.RecoveryAction(apperr.KindExtractionFailed), view.RecoverySuggestion)
}

func TestDOCXParsesCleanly(t *testing.T) {
	h := newHarness(t, false)
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 3000))

	_, err := h.svc.ProcessResume(context.Background(), uuid.Nil, res.ID, false)
	require.NoError(t, err)

	got := h.resume(t, res.ID)
	assert.Equal(t, models.StatusParsed, got.Status)

	doc, err := h.store.GetParsedDocument(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Empty(t, doc.Warnings)
	assert.Equal(t, 3000, doc.Metadata.WordCount)
	assert.Contains(t, doc.ParsedData.Skills, "Go")
}

func TestAutoAdvanceReachesCompleted(t *testing.T) {
	h := newHarness(t, true)
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	_, err := h.svc.ProcessResume(context.Background(), uuid.Nil, res.ID, false)
	require.NoError(t, err)

	got := h.resume(t, res.ID)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NotNil(t, got.LastAnalyzedAt)
	assert.NotNil(t, got.ProcessingCompletedAt)

	matches, err := h.store.ListMatches(context.Background(), res.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "Backend Engineer", matches[0].Job.Title)
	assert.Equal(t, 1, h.ai.count("resume-analysis"))

	view, err := h.svc.Status(context.Background(), uuid.Nil, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, view.ProgressPercentage)
	assert.Nil(t, view.Error)

	// the lock is released when the task ends
	_, err = h.locker.Acquire(context.Background(), res.ID, time.Minute)
	assert.NoError(t, err)
}

func TestAnalysisMissingTechnicalSkillsFails(t *testing.T) {
	h := newHarness(t, true)
	h.ai.analysis = `{"overall_score": 50, "skills": {"soft": ["Talking"]}}`
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	_, err := h.svc.ProcessResume(context.Background(), uuid.Nil, res.ID, false)
	require.NoError(t, err)

	got := h.resume(t, res.ID)
	assert.Equal(t, models.StatusAnalysisFailed, got.Status)
	require.NotNil(t, got.ProcessingError)
	assert.Equal(t, analysis.InvalidFormatMessage, *got.ProcessingError)
	assert.Equal(t, string(apperr.KindAPI), got.ProcessingErrorCode)
	assert.Equal(t, 2, h.ai.count("resume-analysis"))
	assert.Equal(t, 0, h.store.AnalysisCount(res.ID))

	view, err := h.svc.Status(context.Background(), uuid.Nil, res.ID)
	require.NoError(t, err)
	assert.Equal(t, apperr.RecoveryAction(apperr.KindAPI), view.RecoverySuggestion)
	assert.Equal(t, "Analysis failed", view.StatusDescription)
}

func TestProcessResumeRequiresForceAfterFirstRun(t *testing.T) {
	h := newHarness(t, false)
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	_, err := h.svc.ProcessResume(context.Background(), uuid.Nil, res.ID, false)
	require.NoError(t, err)

	_, err = h.svc.ProcessResume(context.Background(), uuid.Nil, res.ID, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestForceReprocessClearsDerivedData(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	_, err := h.svc.ProcessResume(ctx, uuid.Nil, res.ID, false)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, h.resume(t, res.ID).Status)
	require.Equal(t, 1, h.store.AnalysisCount(res.ID))

	h.dispatcher.run = false
	accepted, err := h.svc.ProcessResume(ctx, uuid.Nil, res.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Resume reprocessing started", accepted.Message)

	assert.Equal(t, models.StatusParsing, h.resume(t, res.ID).Status)
	_, err = h.store.GetParsedDocument(ctx, res.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 0, h.store.AnalysisCount(res.ID))
	matches, err := h.store.ListMatches(ctx, res.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
	linked, err := h.store.ListResumeSkills(ctx, res.ID)
	require.NoError(t, err)
	assert.Empty(t, linked)

	// the pending task holds the lock; running it completes the pipeline again
	task := h.dispatcher.tasks[len(h.dispatcher.tasks)-1]
	assert.True(t, task.Force)
	require.NoError(t, h.runner.Run(ctx, task))
	assert.Equal(t, models.StatusCompleted, h.resume(t, res.ID).Status)
	assert.Equal(t, 1, h.store.AnalysisCount(res.ID))
}

func TestConcurrentTriggerConflicts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.dispatcher.run = false
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	_, err := h.svc.ProcessResume(ctx, uuid.Nil, res.ID, false)
	require.NoError(t, err)

	_, err = h.svc.ProcessResume(ctx, uuid.Nil, res.ID, false)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// force does not bypass a live lock
	_, err = h.svc.ProcessResume(ctx, uuid.Nil, res.ID, true)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Len(t, h.dispatcher.tasks, 1)
}

func TestParallelTriggersStartOneAttempt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.dispatcher.run = false
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	// recordingDispatcher is not safe for concurrent use
	var mu sync.Mutex
	inline := &lockedDispatcher{mu: &mu, next: h.dispatcher}
	svc := NewService(h.store, h.objects, h.runner, inline, config.PipelineConfig{LockTTL: time.Minute}, nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ProcessResume(ctx, uuid.Nil, res.ID, true)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, h.dispatcher.tasks, 1)
}

type lockedDispatcher struct {
	mu   *sync.Mutex
	next Dispatcher
}

func (d *lockedDispatcher) Dispatch(ctx context.Context, t Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next.Dispatch(ctx, t)
}

func TestProcessResumeCooldown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	for i := 0; i < 5; i++ {
		require.NoError(t, h.attempts.RecordAttempt(ctx, models.ProcessingAttempt{
			ResumeID: res.ID, Phase: string(apperr.PhaseTextExtraction), Attempt: 1, Outcome: models.AttemptFailed,
		}))
	}

	_, err := h.svc.ProcessResume(ctx, uuid.Nil, res.ID, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindRateLimitExceeded, apperr.KindOf(err))
	assert.Equal(t, models.StatusUploaded, h.resume(t, res.ID).Status)
}

func TestOwnershipAndMissingResume(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)

	owner := uuid.New()
	r, err := h.svc.Upload(ctx, UploadRequest{Owner: owner, FileName: "cv.txt", Size: 4, Body: strings.NewReader("Jane")})
	require.NoError(t, err)
	assert.Equal(t, "txt", r.FileType)

	_, err = h.svc.Status(ctx, uuid.New(), r.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = h.svc.ProcessResume(ctx, owner, uuid.New(), false)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	view, err := h.svc.Status(ctx, owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploaded, view.Status)
}

func TestUploadRejections(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.svc.Upload(context.Background(), UploadRequest{FileName: "cv.exe", Size: 3, Body: strings.NewReader("MZ!")})
	assert.Equal(t, apperr.KindUnsupportedFileType, apperr.KindOf(err))

	_, err = h.svc.Upload(context.Background(), UploadRequest{FileName: "cv.pdf", Size: 2 << 20, Body: strings.NewReader("")})
	assert.Equal(t, apperr.KindFileTooLarge, apperr.KindOf(err))
}

func TestAnalyzeNeedsForceOnceAnalysed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))
	_, err := h.svc.ProcessResume(ctx, uuid.Nil, res.ID, false)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, h.resume(t, res.ID).Status)

	_, err = h.svc.Analyze(ctx, uuid.Nil, res.ID, false)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	_, err = h.svc.Analyze(ctx, uuid.Nil, res.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, h.resume(t, res.ID).Status)
	assert.Equal(t, 2, h.store.AnalysisCount(res.ID))
}

func TestAnalyzeBeforeExtraction(t *testing.T) {
	h := newHarness(t, false)
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	_, err := h.svc.Analyze(context.Background(), uuid.Nil, res.ID, true)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestFindMatches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))
	_, err := h.svc.ProcessResume(ctx, uuid.Nil, res.ID, false)
	require.NoError(t, err)

	_, err = h.svc.FindMatches(ctx, uuid.Nil, res.ID, matching.Options{})
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	_, err = h.svc.Analyze(ctx, uuid.Nil, res.ID, false)
	require.NoError(t, err)
	require.Equal(t, models.StatusAnalyzed, h.resume(t, res.ID).Status)

	out, err := h.svc.FindMatches(ctx, uuid.Nil, res.ID, matching.Options{})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.False(t, out.Reused)
	assert.Equal(t, matching.ModeGraph, out.Mode)
	require.NotEmpty(t, out.Matches)
	assert.LessOrEqual(t, len(out.Matches), MatchSampleSize)
	assert.Equal(t, models.StatusCompleted, h.resume(t, res.ID).Status)

	again, err := h.svc.FindMatches(ctx, uuid.Nil, res.ID, matching.Options{})
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, out.Total, again.Total)
}

func TestDispatchFailureMarksResumeFailed(t *testing.T) {
	h := newHarness(t, false)
	h.dispatcher.err = fmt.Errorf("redis: connection refused")
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	_, err := h.svc.ProcessResume(context.Background(), uuid.Nil, res.ID, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))

	got := h.resume(t, res.ID)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.NotNil(t, got.ProcessingError)

	_, err = h.locker.Acquire(context.Background(), res.ID, time.Minute)
	assert.NoError(t, err)
}

func TestInlineDispatcher(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	inline := NewInlineDispatcher(h.runner, time.Minute, nil)
	svc := NewService(h.store, h.objects, h.runner, inline, config.PipelineConfig{LockTTL: time.Minute}, nil)
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	reqCtx, cancel := context.WithCancel(ctx)
	_, err := svc.ProcessResume(reqCtx, uuid.Nil, res.ID, false)
	require.NoError(t, err)
	// the request ending must not cancel the background attempt
	cancel()

	waitCtx, stop := context.WithTimeout(ctx, 5*time.Second)
	defer stop()
	require.NoError(t, inline.Wait(waitCtx))
	assert.Equal(t, models.StatusParsed, h.resume(t, res.ID).Status)
}

func TestRunnerRefusesWrongPredecessor(t *testing.T) {
	h := newHarness(t, false)
	res := h.upload(t, "resume.docx", docxMIME, docx(t, 300))

	_, err := h.runner.Extract(context.Background(), res.ID)
	require.Error(t, err)

	_, err = h.runner.Analyze(context.Background(), h.resume(t, res.ID))
	require.Error(t, err)
	assert.Equal(t, models.StatusUploaded, h.resume(t, res.ID).Status)
}
