package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"inkwell/features/request"
	"inkwell/internal/middleware"
)

type RequestReader interface {
	Get(ctx context.Context, id string) (*request.ContentRequest, error)
}

type Handler struct {
	requests RequestReader
}

func NewHandler(requests RequestReader) *Handler {
	return &Handler{requests: requests}
}

// Get returns the projected generation status of one request.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	req, err := h.requests.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Request not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "failed to load status", "error", err, "requestId", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"id":          req.ID,
		"status":      req.Status,
		"message":     req.StatusMessage,
		"layout":      req.Layout,
		"isCompleted": req.IsCompleted,
	}
	if req.GeneratedContentID != nil {
		resp["generatedContentId"] = *req.GeneratedContentID
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": resp}); err != nil {
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
