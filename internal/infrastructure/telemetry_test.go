package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"marginreco/internal/config"
)

func TestInitializeTelemetryMetrics(t *testing.T) {
	tel, err := InitializeTelemetry(config.TelemetryConfig{TraceExporter: "none"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tel.Shutdown(context.Background()) })
	assert.Nil(t, tel.TracerProvider)

	ctx := context.Background()
	tel.Metrics.RecordStage(ctx, "ledger_join", 20*time.Millisecond, true)
	tel.Metrics.RecordRun(ctx, RunObservation{Duration: time.Second, Records: 3, Dropped: 1, Duplicates: 1})
	tel.Metrics.RecordRun(ctx, RunObservation{Duration: time.Second, FailedStage: "prepare", Err: errors.New("missing column")})

	w := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "marginreco_runs_total")
	assert.Contains(t, body, `outcome="success"`)
	assert.Contains(t, body, `failed_stage="prepare"`)
	assert.Contains(t, body, "marginreco_join_dropped_total")
	assert.Contains(t, body, "marginreco_stage_duration_seconds")

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, tel.WriteMetricsFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "marginreco_records_total")
}

func TestInitializeTelemetryStdoutTraces(t *testing.T) {
	var buf bytes.Buffer
	tel, err := InitializeTelemetry(config.TelemetryConfig{TraceExporter: "stdout"}, &buf, nil)
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)

	_, span := otel.Tracer("test").Start(context.Background(), "pipeline.stage.margin")
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "pipeline.stage.margin")
}

func TestInitializeTelemetryUnsupportedExporter(t *testing.T) {
	_, err := InitializeTelemetry(config.TelemetryConfig{TraceExporter: "jaeger"}, nil, nil)
	assert.Error(t, err)
}

func TestRunMetricsNil(t *testing.T) {
	var m *RunMetrics
	assert.NotPanics(t, func() {
		m.RecordStage(context.Background(), "prepare", time.Millisecond, false)
		m.RecordRun(context.Background(), RunObservation{})
	})
}
