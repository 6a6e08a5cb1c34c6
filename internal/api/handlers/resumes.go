package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/auth"
	"github.com/nikhilbhutani/resumeflow/internal/matching"
	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/pipeline"
)

// maxMultipartMemory is what ParseMultipartForm keeps in memory; larger
// parts spill to disk.
const maxMultipartMemory = 8 << 20

type ResumeService interface {
	Upload(ctx context.Context, req pipeline.UploadRequest) (*models.Resume, error)
	ProcessResume(ctx context.Context, owner, id uuid.UUID, force bool) (*pipeline.Accepted, error)
	Analyze(ctx context.Context, owner, id uuid.UUID, force bool) (*pipeline.Accepted, error)
	FindMatches(ctx context.Context, owner, id uuid.UUID, opts matching.Options) (*pipeline.MatchSummary, error)
	Status(ctx context.Context, owner, id uuid.UUID) (*pipeline.StatusView, error)
	Get(ctx context.Context, owner, id uuid.UUID) (*pipeline.Detail, error)
	Matches(ctx context.Context, owner, id uuid.UUID, limit int) ([]models.JobMatch, error)
}

type ResumeHandler struct {
	svc         ResumeService
	maxUpload   int64
	defaultMode matching.Mode
	logger      *slog.Logger
}

func NewResumeHandler(svc ResumeService, maxUpload int64, defaultMode matching.Mode, logger *slog.Logger) *ResumeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResumeHandler{svc: svc, maxUpload: maxUpload, defaultMode: defaultMode, logger: logger}
}

type processRequest struct {
	ResumeID string `json:"resumeId"`
	Force    bool   `json:"force"`
}

type stageRequest struct {
	Force bool   `json:"force"`
	Mode  string `json:"mode"`
}

func (h *ResumeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		// leave room for the multipart envelope; the service enforces the exact limit
		limit := h.maxUpload + 1<<20
		if r.ContentLength > limit {
			writeError(w, apperr.Newf(apperr.KindFileTooLarge, apperr.PhaseProcessing, "request body is %d bytes", r.ContentLength))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, apperr.New(apperr.KindFileTooLarge, apperr.PhaseProcessing, err))
			return
		}
		writeBadRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "file required")
		return
	}
	defer file.Close()

	ctx := r.Context()
	owner := auth.OwnerFromContext(ctx)
	res, err := h.svc.Upload(ctx, pipeline.UploadRequest{
		Owner:       owner,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := map[string]interface{}{"resume": res}
	if auto, _ := strconv.ParseBool(r.FormValue("autoProcess")); auto {
		accepted, err := h.svc.ProcessResume(ctx, owner, res.ID, false)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out["processing"] = accepted
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *ResumeHandler) ProcessResume(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := uuid.Parse(req.ResumeID)
	if err != nil {
		writeBadRequest(w, "invalid resumeId")
		return
	}

	accepted, err := h.svc.ProcessResume(r.Context(), auth.OwnerFromContext(r.Context()), id, req.Force)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

func (h *ResumeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := resumeID(w, r)
	if !ok {
		return
	}
	var req stageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	accepted, err := h.svc.Analyze(r.Context(), auth.OwnerFromContext(r.Context()), id, req.Force)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

func (h *ResumeHandler) FindMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := resumeID(w, r)
	if !ok {
		return
	}
	var req stageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, err := matching.ParseMode(req.Mode, h.defaultMode)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	out, err := h.svc.FindMatches(r.Context(), auth.OwnerFromContext(r.Context()), id, matching.Options{Force: req.Force, Mode: mode})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ResumeHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := resumeID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Status(r.Context(), auth.OwnerFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ResumeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := resumeID(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Get(r.Context(), auth.OwnerFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *ResumeHandler) Matches(w http.ResponseWriter, r *http.Request) {
	id, ok := resumeID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}

	matches, err := h.svc.Matches(r.Context(), auth.OwnerFromContext(r.Context()), id, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if matches == nil {
		matches = []models.JobMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": matches, "count": len(matches)})
}

func (h *ResumeHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := writeError(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
}

func resumeID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid resume ID")
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeBadRequest(w, "invalid request body")
	return false
}
