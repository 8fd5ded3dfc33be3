package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"inkwell/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Distill accepts raw text and queues it for distillation. Returns 202; the
// pipeline runs entirely off the request path.
func (h *Handler) Distill(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)

	var req struct {
		AgentID          string `json:"agent_id"`
		RawText          string `json:"raw_text"`
		Source           string `json:"source"`
		SourceType       string `json:"source_type"`
		SourceIdentifier string `json:"source_identifier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			h.writeError(r.Context(), w, "BAD_REQUEST", "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	err := h.service.Distill(r.Context(), DistillPayload{
		AgentID:          req.AgentID,
		RawText:          req.RawText,
		Source:           req.Source,
		SourceType:       req.SourceType,
		SourceIdentifier: req.SourceIdentifier,
	})
	if err != nil {
		if errors.Is(err, ErrEmptyText) || errors.Is(err, ErrMissingAgent) {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(r.Context(), "failed to queue distillation", "error", err, "agentId", req.AgentID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
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
