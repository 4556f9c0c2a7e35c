// Package handler exposes KYC submission intake and the admin review queue
// over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"keohams/internal/kyc/docstore"
	"keohams/internal/kyc/models"
	platformmw "keohams/internal/platform/middleware"
	dErrors "keohams/pkg/domainerrors"
	"keohams/pkg/httputil"
	"keohams/pkg/requestcontext"
)

const maxUploadBytes = 64 << 20 // 64 MiB across the whole bundle

// Service is the KYC surface the handler needs.
type Service interface {
	Submit(ctx context.Context, userID uuid.UUID, bundle models.DocumentBundle, notes string) (*models.Submission, error)
	Review(ctx context.Context, submissionID uuid.UUID, decision models.Decision, reviewerID uuid.UUID, notes string) (*models.Submission, error)
	Current(ctx context.Context, userID uuid.UUID) (*models.Submission, error)
	List(ctx context.Context, status models.SubmissionStatus, page, pageSize int) ([]*models.Submission, int, error)
}

type Handler struct {
	logger    *slog.Logger
	service   Service
	docs      docstore.Store
	validator platformmw.TokenValidator
}

func New(service Service, docs docstore.Store, validator platformmw.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service, docs: docs, validator: validator}
}

// Register mounts the KYC routes.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(platformmw.RequireAuth(h.validator, h.logger))
		r.Post("/kyc/submissions", h.handleSubmit)
		r.Get("/kyc/submissions/current", h.handleCurrent)

		r.Group(func(r chi.Router) {
			r.Use(platformmw.RequireAdmin(h.logger))
			r.Get("/kyc/submissions", h.handleList)
			r.Post("/admin/kyc/submissions/{submissionID}/review", h.handleReview)
		})
	})
}

// SubmissionResponse is the API view of a submission.
type SubmissionResponse struct {
	ID          string                `json:"id"`
	UserID      string                `json:"user_id"`
	Status      string                `json:"status"`
	Documents   models.DocumentBundle `json:"documents"`
	Notes       string                `json:"notes,omitempty"`
	ReviewerID  string                `json:"reviewer_id,omitempty"`
	ReviewNotes string                `json:"review_notes,omitempty"`
	SubmittedAt time.Time             `json:"submitted_at"`
	ReviewedAt  *time.Time            `json:"reviewed_at,omitempty"`
}

func toSubmissionResponse(submission *models.Submission) SubmissionResponse {
	resp := SubmissionResponse{
		ID:          submission.ID.String(),
		UserID:      submission.UserID.String(),
		Status:      string(submission.Status),
		Documents:   submission.Documents,
		Notes:       submission.Notes,
		ReviewNotes: submission.ReviewNotes,
		SubmittedAt: submission.SubmittedAt,
		ReviewedAt:  submission.ReviewedAt,
	}
	if submission.ReviewerID != nil {
		resp.ReviewerID = submission.ReviewerID.String()
	}
	return resp
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := uuid.Parse(requestcontext.UserID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}

	bundle, err := h.saveBundle(ctx, userID, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	submission, err := h.service.Submit(ctx, userID, bundle, r.FormValue("notes"))
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeBadRequest) && !dErrors.Is(err, dErrors.CodeConflict) {
			h.logger.ErrorContext(ctx, "kyc submit failed",
				"error", err,
				"user_id", userID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSubmissionResponse(submission))
}

// saveBundle stores each provided upload and assembles the typed bundle.
// Required-document validation happens in the service; absent files simply
// leave their field nil.
func (h *Handler) saveBundle(ctx context.Context, userID uuid.UUID, r *http.Request) (models.DocumentBundle, error) {
	var bundle models.DocumentBundle
	fields := []struct {
		name string
		dest **models.Document
	}{
		{"portrait", &bundle.Portrait},
		{"selfie_video", &bundle.SelfieVideo},
		{"id_front", &bundle.IDFront},
		{"id_back", &bundle.IDBack},
	}
	for _, field := range fields {
		file, header, err := r.FormFile(field.name)
		if err == http.ErrMissingFile {
			continue
		}
		if err != nil {
			return bundle, dErrors.Newf(dErrors.CodeBadRequest, "reading %s upload", field.name)
		}
		doc, err := h.saveFile(ctx, userID, header, file)
		file.Close()
		if err != nil {
			return bundle, err
		}
		*field.dest = doc
	}
	return bundle, nil
}

func (h *Handler) saveFile(ctx context.Context, userID uuid.UUID, header *multipart.FileHeader, file multipart.File) (*models.Document, error) {
	doc, err := h.docs.Save(ctx, userID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.logger.ErrorContext(ctx, "document save failed",
			"error", err,
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "storing uploaded document")
	}
	return doc, nil
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := uuid.Parse(requestcontext.UserID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	submission, err := h.service.Current(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSubmissionResponse(submission))
}

// ListResponse is a page of submissions.
type ListResponse struct {
	Submissions []SubmissionResponse `json:"submissions"`
	Total       int                  `json:"total"`
	Page        int                  `json:"page"`
	PageSize    int                  `json:"page_size"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := models.SubmissionStatus(r.URL.Query().Get("status"))
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 20)

	submissions, total, err := h.service.List(ctx, status, page, pageSize)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeBadRequest) {
			h.logger.ErrorContext(ctx, "list submissions failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{
		Submissions: make([]SubmissionResponse, 0, len(submissions)),
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
	}
	for _, submission := range submissions {
		resp.Submissions = append(resp.Submissions, toSubmissionResponse(submission))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ReviewRequest is the admin decision body.
type ReviewRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reviewerID, err := uuid.Parse(requestcontext.UserID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	submissionID, err := uuid.Parse(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid submission id"))
		return
	}
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	decision, err := models.ParseDecision(req.Decision)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	submission, err := h.service.Review(ctx, submissionID, decision, reviewerID, req.Notes)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "review failed",
				"error", err,
				"submission_id", submissionID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSubmissionResponse(submission))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 1 {
		return fallback
	}
	return val
}
