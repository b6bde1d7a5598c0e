package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	status := NewHealthService("1.2.3", nil, nil).HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Contains(t, status.Runtime, "go_version")
	assert.Empty(t, status.Services)

	store, err := NewArtifactStore("", time.Minute, nil)
	require.NoError(t, err)
	hs := NewHealthService("1.2.3", store, nil)

	status = hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, ServiceHealth{Status: "ok"}, status.Services["artifacts"])

	require.NoError(t, store.Close())
	_, statErr := os.Stat(store.Root())
	require.True(t, os.IsNotExist(statErr))

	status = hs.HealthCheck(context.Background())
	assert.Equal(t, "degraded", status.Status)
}
