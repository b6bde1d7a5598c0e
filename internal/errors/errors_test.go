package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorToProblem(t *testing.T) {
	h := NewErrorHandler(slog.Default())
	r := httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)

	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"validation", NewAppValidationError("primary workbook is required"), http.StatusBadRequest, TypeValidation},
		{"schema", NewSchemaError("missing required columns: COUNT"), http.StatusUnprocessableEntity, TypeSchema},
		{"division", NewDivisionError("tax multiplier is 0"), http.StatusUnprocessableEntity, TypeDivision},
		{"join", NewJoinIntegrityError("no matches"), http.StatusUnprocessableEntity, TypeJoinIntegrity},
		{"not found", NewNotFoundError("report 1"), http.StatusNotFound, TypeNotFound},
		{"artifact io", NewArtifactIOError("write failed", stderrors.New("disk full")), http.StatusInternalServerError, TypeArtifactIO},
		{"config", NewConfigError("bad config", nil), http.StatusInternalServerError, TypeInternal},
		{"wrapped", fmt.Errorf("stage prepare: %w", NewSchemaError("x")), http.StatusUnprocessableEntity, TypeSchema},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError, TypeInternal},
		{"cancelled", context.Canceled, http.StatusGatewayTimeout, TypeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, "/api/v1/reports", p.Instance)
		})
	}
}

func TestErrorToProblemHidesPlainErrorDetail(t *testing.T) {
	p := NewErrorHandler(slog.Default()).ErrorToProblem(stderrors.New("secret path /var/x"),
		httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotContains(t, p.Detail, "secret")
}

func TestHandleError(t *testing.T) {
	h := NewErrorHandler(slog.Default())
	r := httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)
	r = r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, "req-1"))
	w := httptest.NewRecorder()

	err := NewAppValidationError("primary workbook is required").WithContext("field", "primary")
	h.HandleError(w, r, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "json")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, TypeValidation, body["type"])
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
	assert.Equal(t, "req-1", body["trace_id"])
	assert.Equal(t, "primary", body["field"])
	assert.Contains(t, body["detail"], "primary workbook is required")
}

func TestHandleErrorNil(t *testing.T) {
	w := httptest.NewRecorder()
	NewErrorHandler(slog.Default()).HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, w.Body.Len())
}

func TestAppError(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewArtifactIOError("write failed", cause)

	assert.Equal(t, "[ARTIFACT_IO] write failed: disk full", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, ErrTypeArtifactIO, TypeOf(fmt.Errorf("wrap: %w", err)))
	assert.Equal(t, ErrorType(""), TypeOf(cause))
	assert.False(t, IsType(nil, ErrTypeArtifactIO))
	assert.Equal(t, "[NOT_FOUND] report 7 not found", NewNotFoundError("report 7").Error())
}

func TestProblemDetailsMarshal(t *testing.T) {
	p := NewProblemDetails(http.StatusTooManyRequests, TypeRateLimit, "Too Many Requests", "", "").
		WithExtension("retry_after", 1)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"/errors/rate-limit-exceeded","title":"Too Many Requests","status":429,"retry_after":1}`, string(data))
}
