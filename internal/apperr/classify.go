package apperr

import (
	"context"
	"errors"
	"net"
	"strings"
)

type rule struct {
	kind     Kind
	patterns []string
}

// Order matters: content errors are checked before transport errors, so a
// "damaged file" message that also mentions a timeout stays terminal.
var rules = []rule{
	{KindProtectedDocument, []string{"password", "encrypted", "protected"}},
	{KindCorruptedFile, []string{"corrupt", "damaged", "invalid pdf", "invalid docx", "invalid doc ", "malformed", "not a valid zip", "invalid structure", "structure:", "not a pdf"}},
	{KindUnsupportedFileType, []string{"unsupported file", "unsupported format", "unsupported mime"}},
	{KindFileTooLarge, []string{"too large", "file size", "entity too large"}},
	{KindEmptyDocument, []string{"empty document", "no text", "no content", "empty text"}},
	{KindOCRFailed, []string{"ocr", "tesseract", "pdftoppm"}},
	{KindRateLimitExceeded, []string{"rate limit", "too many requests", "status 429", "cooldown"}},
	{KindTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{KindAuthentication, []string{"unauthorized", "forbidden", "permission denied", "access denied", "invalid token", "status 401", "status 403"}},
	{KindFileNotFound, []string{"object not found", "no such file", "nosuchkey", "does not exist", "status 404"}},
	{KindNetwork, []string{"connection refused", "connection reset", "network", "no such host", "dial tcp", "broken pipe", "unexpected eof", "tls handshake"}},
	{KindDatabase, []string{"database", "sql", "pgx", "postgres", "duplicate key", "constraint", "deadlock", "stale version"}},
	{KindAPI, []string{"openai", "anthropic", "ollama", "provider", "invalid analysis format", "invalid job list", "api error", "status 5", "llm"}},
}

var phaseDefaults = map[Phase]Kind{
	PhaseFileDownload:    KindFileNotFound,
	PhaseTextExtraction:  KindExtractionFailed,
	PhaseDatabaseStorage: KindDatabase,
	PhaseAnalysis:        KindAPI,
	PhaseMatching:        KindAPI,
}

// Classify maps a raw failure from phase onto the error taxonomy. An error
// that is already classified is returned unchanged apart from a missing phase.
func Classify(err error, phase Phase) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		if e.Phase == "" {
			e.Phase = phase
		}
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, phase, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return New(KindTimeout, phase, err)
		}
		return New(KindNetwork, phase, err)
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(msg, p) {
				return New(r.kind, phase, err)
			}
		}
	}

	// "not found" is ambiguous: a missing object during download, a missing
	// row everywhere else.
	if strings.Contains(msg, "not found") {
		if phase == PhaseFileDownload {
			return New(KindFileNotFound, phase, err)
		}
		return New(KindNotFound, phase, err)
	}

	if kind, ok := phaseDefaults[phase]; ok {
		return New(kind, phase, err)
	}
	return New(KindUnknown, phase, err)
}
