// Package apperr defines the classified error type that crosses every
// pipeline boundary.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuthentication      Kind = "AUTHENTICATION"
	KindFileNotFound        Kind = "FILE_NOT_FOUND"
	KindUnsupportedFileType Kind = "UNSUPPORTED_FILE_TYPE"
	KindExtractionFailed    Kind = "EXTRACTION_FAILED"
	KindDatabase            Kind = "DATABASE_ERROR"
	KindProtectedDocument   Kind = "PROTECTED_DOCUMENT"
	KindCorruptedFile       Kind = "CORRUPTED_FILE"
	KindEmptyDocument       Kind = "EMPTY_DOCUMENT"
	KindOCRFailed           Kind = "OCR_FAILED"
	KindFileTooLarge        Kind = "FILE_TOO_LARGE"
	KindRateLimitExceeded   Kind = "RATE_LIMIT_EXCEEDED"
	KindNetwork             Kind = "NETWORK_ERROR"
	KindAPI                 Kind = "API_ERROR"
	KindTimeout             Kind = "TIMEOUT_ERROR"
	KindConflict            Kind = "CONFLICT"
	KindNotFound            Kind = "NOT_FOUND"
	KindInvalidState        Kind = "INVALID_STATE"
	KindUnknown             Kind = "UNKNOWN"
)

type Phase string

const (
	PhaseFileDownload    Phase = "file-download"
	PhaseTextExtraction  Phase = "text-extraction"
	PhaseProcessing      Phase = "processing"
	PhaseAnalysis        Phase = "analysis"
	PhaseMatching        Phase = "matching"
	PhaseDatabaseStorage Phase = "database-storage"
	PhaseUnknown         Phase = "unknown"
)

type kindInfo struct {
	userMessage    string
	recoveryAction string
	retryable      bool
}

var kinds = map[Kind]kindInfo{
	KindAuthentication: {
		userMessage:    "You are not authorized to access this resume.",
		recoveryAction: "Sign in again and retry.",
	},
	KindFileNotFound: {
		userMessage:    "The uploaded file could not be found in storage.",
		recoveryAction: "Upload the resume again.",
	},
	KindUnsupportedFileType: {
		userMessage:    "This file type is not supported.",
		recoveryAction: "Upload a PDF, DOCX, TXT or image file.",
	},
	KindExtractionFailed: {
		userMessage:    "We could not extract text from this document.",
		recoveryAction: "Convert the document to PDF or DOCX and re-upload.",
	},
	KindDatabase: {
		userMessage:    "A storage error occurred while saving your resume.",
		recoveryAction: "Try again in a few minutes.",
		retryable:      true,
	},
	KindProtectedDocument: {
		userMessage:    "The document is password protected.",
		recoveryAction: "Remove the password protection and re-upload.",
	},
	KindCorruptedFile: {
		userMessage:    "The file appears to be damaged or incomplete.",
		recoveryAction: "Re-export the document from its original editor and re-upload.",
	},
	KindEmptyDocument: {
		userMessage:    "No text was found in the document.",
		recoveryAction: "Upload a text-based PDF or DOCX instead of a scanned image.",
	},
	KindOCRFailed: {
		userMessage:    "Text recognition failed for this scanned document.",
		recoveryAction: "Upload a higher-quality scan or a text-based PDF.",
	},
	KindFileTooLarge: {
		userMessage:    "The file is too large to process.",
		recoveryAction: "Reduce the file size below the upload limit and re-upload.",
	},
	KindRateLimitExceeded: {
		userMessage:    "This resume has failed too many times recently.",
		recoveryAction: "Wait a few minutes before retrying, or upload a different file.",
	},
	KindNetwork: {
		userMessage:    "A network problem interrupted processing.",
		recoveryAction: "Processing will be retried automatically; try again later if it keeps failing.",
		retryable:      true,
	},
	KindAPI: {
		userMessage:    "The analysis service returned an unexpected response.",
		recoveryAction: "Try the analysis again in a few minutes.",
		retryable:      true,
	},
	KindTimeout: {
		userMessage:    "Processing took too long and timed out.",
		recoveryAction: "Try again; if the file is very large, upload a smaller version.",
		retryable:      true,
	},
	KindConflict: {
		userMessage:    "This resume is already being processed.",
		recoveryAction: "Wait for the current run to finish and check its status.",
	},
	KindNotFound: {
		userMessage:    "Resume not found.",
		recoveryAction: "Check the resume id.",
	},
	KindInvalidState: {
		userMessage:    "The resume is not in a state that allows this operation.",
		recoveryAction: "Check the resume status; use force to run the stage again.",
	},
	KindUnknown: {
		userMessage:    "An unexpected error occurred.",
		recoveryAction: "Try again; contact support if the problem persists.",
	},
}

// Error is a classified failure. UserMessage and RecoveryAction are safe to
// show to end users; TechnicalDetails is for logs.
type Error struct {
	Kind             Kind
	Phase            Phase
	UserMessage      string
	TechnicalDetails string
	RecoveryAction   string
	Retryable        bool
	Err              error
}

func (e *Error) Error() string {
	if e.TechnicalDetails != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.TechnicalDetails)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.UserMessage)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with its default messages.
func New(kind Kind, phase Phase, err error) *Error {
	info, ok := kinds[kind]
	if !ok {
		kind, info = KindUnknown, kinds[KindUnknown]
	}
	e := &Error{
		Kind:           kind,
		Phase:          phase,
		UserMessage:    info.userMessage,
		RecoveryAction: info.recoveryAction,
		Retryable:      info.retryable,
		Err:            err,
	}
	if err != nil {
		e.TechnicalDetails = err.Error()
	}
	return e
}

// Newf is New with a formatted technical cause.
func Newf(kind Kind, phase Phase, format string, args ...any) *Error {
	return New(kind, phase, fmt.Errorf(format, args...))
}

// WithMessage overrides the user-facing message.
func (e *Error) WithMessage(msg string) *Error {
	e.UserMessage = msg
	return e
}

// WithRecovery overrides the recovery action.
func (e *Error) WithRecovery(action string) *Error {
	e.RecoveryAction = action
	return e
}

// As returns the classified error inside err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of a classified error, or KindUnknown.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether kind is a transient failure class.
func IsRetryable(kind Kind) bool {
	return kinds[kind].retryable
}

// RecoveryAction returns the default recovery action for kind.
func RecoveryAction(kind Kind) string {
	if info, ok := kinds[kind]; ok {
		return info.recoveryAction
	}
	return kinds[KindUnknown].recoveryAction
}
