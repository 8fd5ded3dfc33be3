package usage

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"inkwell/internal/middleware"
)

type Handler struct {
	repo Repo
}

func NewHandler(repo Repo) *Handler {
	return &Handler{repo: repo}
}

// Summary returns aggregated token usage for one request.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Request id is required", http.StatusBadRequest)
		return
	}

	summary, err := h.repo.Summarize(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to summarize usage", "error", err, "requestId", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": summary}); err != nil {
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
