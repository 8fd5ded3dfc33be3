package request

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"inkwell/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID          string `json:"agent_id"`
		Topic            string `json:"topic"`
		BriefDescription string `json:"brief_description"`
		TargetLength     int    `json:"target_length"`
		Layout           string `json:"layout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	cr := &ContentRequest{
		AgentID:          req.AgentID,
		Topic:            req.Topic,
		BriefDescription: req.BriefDescription,
		TargetLength:     req.TargetLength,
		Layout:           req.Layout,
	}
	if err := h.service.Submit(r.Context(), cr); err != nil {
		if errors.Is(err, ErrTopicRequired) || errors.Is(err, ErrAgentRequired) || strings.Contains(err.Error(), "unknown layout") {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(r.Context(), "failed to create request", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]any{"data": cr}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list requests", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if requests == nil {
		requests = []ContentRequest{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": requests}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Request not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "failed to load request", "error", err, "requestId", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": req}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Approve(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.writeError(r.Context(), w, "NOT_FOUND", "Request not found", http.StatusNotFound)
		case errors.Is(err, ErrAlreadyCompleted):
			h.writeError(r.Context(), w, "CONFLICT", err.Error(), http.StatusConflict)
		default:
			slog.ErrorContext(r.Context(), "failed to approve request", "error", err, "requestId", id)
			h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]any{"status": "queued"}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
