package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"inkwell/internal/middleware"
)

type Handler struct {
	repo *PostgresRepo
}

func NewHandler(repo *PostgresRepo) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	contents, err := h.repo.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list contents", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if contents == nil {
		contents = []GeneratedContent{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": contents}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	s := r.PathValue("slug")
	if s == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Slug is required", http.StatusBadRequest)
		return
	}

	c, err := h.repo.GetBySlug(r.Context(), s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Content not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "failed to load content", "error", err, "slug", s)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": c}); err != nil {
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
