package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
)

type errorBody struct {
	Error          string `json:"error"`
	ErrorType      string `json:"errorType,omitempty"`
	RecoveryAction string `json:"recoveryAction,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.KindUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case apperr.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// writeError renders a classified error. Anything unclassified is reported
// as UNKNOWN without its details.
func writeError(w http.ResponseWriter, err error) int {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.New(apperr.KindUnknown, apperr.PhaseUnknown, err)
	}
	status := statusFor(ae.Kind)
	writeJSON(w, status, errorBody{
		Error:          ae.UserMessage,
		ErrorType:      string(ae.Kind),
		RecoveryAction: ae.RecoveryAction,
	})
	return status
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
