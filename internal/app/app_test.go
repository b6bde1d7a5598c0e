package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"marginreco/internal/config"
	apperrors "marginreco/internal/errors"
	"marginreco/internal/shared/testutil"
	handlers "marginreco/internal/transport/http"
)

type upload struct {
	field string
	name  string
	data  []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func newTestApp(t *testing.T, configure func(*config.Config)) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Output.TempDir = t.TempDir()
	cfg.Server.RateLimit.Enabled = false
	if configure != nil {
		configure(cfg)
	}
	logger, _ := testutil.NewTestLogger(t)

	a, err := NewApplication(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Stop(context.Background()) })
	return a
}

func sampleUploads(t *testing.T) (primary, secondary []byte) {
	t.Helper()
	primaryPath, secondaryPath := testutil.WriteSampleLedgers(t, t.TempDir())
	primary, err := os.ReadFile(primaryPath)
	require.NoError(t, err)
	secondary, err = os.ReadFile(secondaryPath)
	require.NoError(t, err)
	return primary, secondary
}

func serve(a *Application, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, r)
	return w
}

func problemType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	typ, _ := body["type"].(string)
	return typ
}

func TestReportLifecycle(t *testing.T) {
	a := newTestApp(t, nil)
	primary, secondary := sampleUploads(t)

	body, ct := multipartBody(t, nil,
		upload{"primary", "sales.xlsx", primary},
		upload{"secondary", "discounts.xlsx", secondary})
	w := serve(a, http.MethodPost, "/api/v1/reports", body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp handlers.ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testutil.SampleRecords, resp.Records)
	assert.Equal(t, testutil.SampleDropped, resp.Join.Dropped)
	assert.Equal(t, "280000", resp.Reconciliation.Total)
	assert.Equal(t, "280000", resp.Reconciliation.TotalMargin)
	assert.True(t, resp.Reconciliation.Consistent)
	assert.Len(t, resp.Stages, 6)
	assert.Equal(t, "/api/v1/reports/"+resp.ID+"/complete", resp.Links["complete"])
	assert.Equal(t, 1, a.Store.Len())

	w = serve(a, http.MethodGet, resp.Links["complete"]+"?name=march", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="march.xlsx"`, w.Header().Get("Content-Disposition"))
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Summary", "Difference"}, f.GetSheetList())
	f.Close()

	w = serve(a, http.MethodGet, resp.Links["trimmed"], nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="trim_chassis.xlsx"`, w.Header().Get("Content-Disposition"))

	w = serve(a, http.MethodDelete, "/api/v1/reports/"+resp.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, a.Store.Len())

	w = serve(a, http.MethodGet, resp.Links["complete"], nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.TypeNotFound, problemType(t, w))
}

func TestCreateReportRejections(t *testing.T) {
	a := newTestApp(t, nil)
	primary, secondary := sampleUploads(t)
	unmatched := testutil.WorkbookBytes(t, testutil.Sheet{
		Name: testutil.DiscountsSheet,
		Rows: [][]interface{}{{"Chassis_No", "Total Discount"}, {"NOPE", 1}},
	})

	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
		status int
		typ    string
	}{
		{
			name:   "missing secondary",
			files:  []upload{{"primary", "sales.xlsx", primary}},
			status: http.StatusBadRequest,
			typ:    apperrors.TypeValidation,
		},
		{
			name:   "not an xlsx name",
			files:  []upload{{"primary", "sales.csv", primary}, {"secondary", "discounts.xlsx", secondary}},
			status: http.StatusBadRequest,
			typ:    apperrors.TypeValidation,
		},
		{
			name:   "invalid flag",
			fields: map[string]string{"allow_overlap": "maybe"},
			files:  []upload{{"primary", "sales.xlsx", primary}, {"secondary", "discounts.xlsx", secondary}},
			status: http.StatusBadRequest,
			typ:    apperrors.TypeValidation,
		},
		{
			name:   "unknown sheet",
			fields: map[string]string{"primary_sheet": "March"},
			files:  []upload{{"primary", "sales.xlsx", primary}, {"secondary", "discounts.xlsx", secondary}},
			status: http.StatusBadRequest,
			typ:    apperrors.TypeValidation,
		},
		{
			name:   "nothing matches",
			files:  []upload{{"primary", "sales.xlsx", primary}, {"secondary", "discounts.xlsx", unmatched}},
			status: http.StatusUnprocessableEntity,
			typ:    apperrors.TypeJoinIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.fields, tt.files...)
			w := serve(a, http.MethodPost, "/api/v1/reports", body, ct)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.typ, problemType(t, w))
			assert.Equal(t, 0, a.Store.Len())
		})
	}

	entries, err := os.ReadDir(a.Store.Root())
	require.NoError(t, err)
	assert.Empty(t, entries, "failed runs leave no directories behind")
}

func TestCreateReportRequiresMultipart(t *testing.T) {
	a := newTestApp(t, nil)
	w := serve(a, http.MethodPost, "/api/v1/reports", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.TypeValidation, problemType(t, w))
}

func TestCreateReportUploadLimit(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) { cfg.Server.MaxUploadBytes = 512 })
	primary, secondary := sampleUploads(t)

	body, ct := multipartBody(t, nil,
		upload{"primary", "sales.xlsx", primary},
		upload{"secondary", "discounts.xlsx", secondary})
	w := serve(a, http.MethodPost, "/api/v1/reports", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadValidation(t *testing.T) {
	a := newTestApp(t, nil)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"malformed id", "/api/v1/reports/abc/complete", http.StatusBadRequest},
		{"unknown kind", "/api/v1/reports/0b6f8f2e-6a55-4c1e-9a43-4b2f5d1c7e10/partial", http.StatusBadRequest},
		{"path in name", "/api/v1/reports/0b6f8f2e-6a55-4c1e-9a43-4b2f5d1c7e10/complete?name=..%2Fx", http.StatusBadRequest},
		{"unknown report", "/api/v1/reports/0b6f8f2e-6a55-4c1e-9a43-4b2f5d1c7e10/complete", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(a, http.MethodGet, tt.target, nil, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := serve(a, http.MethodDelete, "/api/v1/reports/0b6f8f2e-6a55-4c1e-9a43-4b2f5d1c7e10", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSheets(t *testing.T) {
	a := newTestApp(t, nil)
	primary, _ := sampleUploads(t)

	body, ct := multipartBody(t, nil, upload{"file", "sales.xlsx", primary})
	w := serve(a, http.MethodPost, "/api/v1/sheets", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp handlers.SheetsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{testutil.SalesSheet}, resp.Sheets)

	body, ct = multipartBody(t, nil, upload{"file", "notes.xlsx", []byte("plain text")})
	w = serve(a, http.MethodPost, "/api/v1/sheets", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	a := newTestApp(t, nil)

	w := serve(a, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, VERSION, health["version"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = serve(a, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.TypeNotFound, problemType(t, w))

	w = serve(a, http.MethodPut, "/healthz", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = serve(a, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "marginreco_http_requests_total")
}

func TestRateLimitedAPI(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Server.RateLimit.Enabled = true
		cfg.Server.RateLimit.RPS = 0.1
		cfg.Server.RateLimit.Burst = 1
	})

	first := serve(a, http.MethodDelete, "/api/v1/reports/0b6f8f2e-6a55-4c1e-9a43-4b2f5d1c7e10", nil, "")
	assert.Equal(t, http.StatusNotFound, first.Code)

	second := serve(a, http.MethodDelete, "/api/v1/reports/0b6f8f2e-6a55-4c1e-9a43-4b2f5d1c7e10", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, apperrors.TypeRateLimit, problemType(t, second))

	health := serve(a, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, health.Code, "health checks are not rate limited")
}
