// Package handler exposes the risk ledger to admin tooling.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	platformmw "keohams/internal/platform/middleware"
	"keohams/internal/risk/models"
	dErrors "keohams/pkg/domainerrors"
	"keohams/pkg/httputil"
	"keohams/pkg/requestcontext"
)

// Service is the risk surface the handler needs.
type Service interface {
	Apply(ctx context.Context, userID uuid.UUID, eventType models.EventType, delta int) (*models.Event, error)
	List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.Event, int, error)
}

type Handler struct {
	logger    *slog.Logger
	service   Service
	validator platformmw.TokenValidator
}

func New(service Service, validator platformmw.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service, validator: validator}
}

// Register mounts the admin risk routes.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(platformmw.RequireAuth(h.validator, h.logger))
		r.Use(platformmw.RequireAdmin(h.logger))
		r.Get("/admin/risk/{userID}/events", h.handleList)
		r.Post("/admin/risk/{userID}/events", h.handleApply)
	})
}

// ApplyEventRequest is an admin-initiated risk event.
type ApplyEventRequest struct {
	EventType string `json:"event_type"`
	Delta     int    `json:"delta"`
}

// EventResponse is one ledger row.
type EventResponse struct {
	ID             string    `json:"id"`
	EventType      string    `json:"event_type"`
	Delta          int       `json:"delta"`
	ResultingScore int       `json:"resulting_score"`
	ResultingLevel string    `json:"resulting_level"`
	ClientIP       string    `json:"client_ip,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListResponse is a page of ledger rows.
type ListResponse struct {
	Events   []EventResponse `json:"events"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	var req ApplyEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	event, err := h.service.Apply(ctx, userID, models.EventType(req.EventType), req.Delta)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeBadRequest) {
			h.logger.ErrorContext(ctx, "failed to apply risk event",
				"error", err,
				"user_id", userID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toEventResponse(event))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 20)

	events, total, err := h.service.List(ctx, userID, page, pageSize)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list risk events",
			"error", err,
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{Events: make([]EventResponse, 0, len(events)), Total: total, Page: page, PageSize: pageSize}
	for _, event := range events {
		resp.Events = append(resp.Events, toEventResponse(event))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func toEventResponse(event *models.Event) EventResponse {
	return EventResponse{
		ID:             event.ID.String(),
		EventType:      string(event.Type),
		Delta:          event.Delta,
		ResultingScore: event.ResultingScore,
		ResultingLevel: string(event.ResultingLevel),
		ClientIP:       event.Context.ClientIP,
		UserAgent:      event.Context.UserAgent,
		CreatedAt:      event.CreatedAt,
	}
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
