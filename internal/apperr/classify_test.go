package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		phase     Phase
		want      Kind
		retryable bool
	}{
		{name: "encrypted pdf", err: errors.New("document is password protected: encrypted PDF"), phase: PhaseTextExtraction, want: KindProtectedDocument},
		{name: "damaged pdf", err: errors.New("invalid pdf structure: malformed PDF: missing xref"), phase: PhaseTextExtraction, want: KindCorruptedFile},
		{name: "bad zip", err: errors.New("zip: not a valid zip file"), phase: PhaseTextExtraction, want: KindCorruptedFile},
		{name: "empty document", err: errors.New("no text could be extracted"), phase: PhaseTextExtraction, want: KindEmptyDocument},
		{name: "ocr failure", err: errors.New("tesseract: exit status 1"), phase: PhaseTextExtraction, want: KindOCRFailed},
		{name: "context deadline", err: fmt.Errorf("download: %w", context.DeadlineExceeded), phase: PhaseFileDownload, want: KindTimeout, retryable: true},
		{name: "net timeout", err: fmt.Errorf("read: %w", timeoutErr{}), phase: PhaseFileDownload, want: KindTimeout, retryable: true},
		{name: "connection refused", err: errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), phase: PhaseFileDownload, want: KindNetwork, retryable: true},
		{name: "missing object", err: errors.New("object not found: resumes/a.pdf"), phase: PhaseFileDownload, want: KindFileNotFound},
		{name: "not found during download", err: errors.New("key not found"), phase: PhaseFileDownload, want: KindFileNotFound},
		{name: "not found elsewhere", err: errors.New("resume not found"), phase: PhaseProcessing, want: KindNotFound},
		{name: "database", err: errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"), phase: PhaseDatabaseStorage, want: KindDatabase, retryable: true},
		{name: "llm provider", err: errors.New("openai chat completion: status 502"), phase: PhaseAnalysis, want: KindAPI, retryable: true},
		{name: "rate limited", err: errors.New("429 Too Many Requests"), phase: PhaseAnalysis, want: KindRateLimitExceeded},
		{name: "auth", err: errors.New("storage download: status 403 forbidden"), phase: PhaseFileDownload, want: KindAuthentication},
		{name: "phase default extraction", err: errors.New("something odd"), phase: PhaseTextExtraction, want: KindExtractionFailed},
		{name: "phase default analysis", err: errors.New("something odd"), phase: PhaseAnalysis, want: KindAPI, retryable: true},
		{name: "unknown", err: errors.New("something odd"), phase: PhaseUnknown, want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, tt.phase)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.Equal(t, tt.phase, got.Phase)
			assert.NotEmpty(t, got.UserMessage)
			assert.NotEmpty(t, got.RecoveryAction)
			assert.Equal(t, tt.err.Error(), got.TechnicalDetails)
			assert.True(t, errors.Is(got, tt.err))
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil, PhaseProcessing))
}

func TestClassifyKeepsClassifiedErrors(t *testing.T) {
	orig := New(KindFileTooLarge, "", errors.New("12MB > 10MB"))
	wrapped := fmt.Errorf("upload: %w", orig)

	got := Classify(wrapped, PhaseTextExtraction)
	assert.Same(t, orig, got)
	assert.Equal(t, PhaseTextExtraction, got.Phase)
}

func TestOnlyTransientKindsRetry(t *testing.T) {
	retryable := map[Kind]bool{
		KindNetwork:  true,
		KindTimeout:  true,
		KindAPI:      true,
		KindDatabase: true,
	}
	for kind := range kinds {
		assert.Equal(t, retryable[kind], IsRetryable(kind), "kind %s", kind)
		assert.NotEmpty(t, RecoveryAction(kind))
	}
}

func TestErrorOverrides(t *testing.T) {
	e := New(KindExtractionFailed, PhaseTextExtraction, errors.New("ole2 header")).
		WithMessage("Legacy .doc files could not be read.").
		WithRecovery("Save the document as DOCX and re-upload.")

	assert.Equal(t, "Legacy .doc files could not be read.", e.UserMessage)
	assert.Equal(t, "Save the document as DOCX and re-upload.", e.RecoveryAction)
	assert.Equal(t, "EXTRACTION_FAILED: ole2 header", e.Error())
	assert.Equal(t, KindExtractionFailed, KindOf(fmt.Errorf("x: %w", e)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}
