package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"inkwell/internal/middleware"
)

func TestCorrelationID_GeneratesWhenMissing(t *testing.T) {
	var captured string
	handler := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetCorrelationID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, rec.Header().Get("X-Correlation-ID"))
}

func TestCorrelationID_PropagatesHeader(t *testing.T) {
	var captured string
	handler := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "abc-123", captured)
}

func TestGetCorrelationID_Unknown(t *testing.T) {
	assert.Equal(t, "unknown", middleware.GetCorrelationID(context.Background()))
}

func TestWithCorrelationID(t *testing.T) {
	ctx := middleware.WithCorrelationID(context.Background(), "job-7")
	assert.Equal(t, "job-7", middleware.GetCorrelationID(ctx))
}
