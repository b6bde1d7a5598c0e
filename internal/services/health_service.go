package services

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	store     *ArtifactStore
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. store may be nil.
func NewHealthService(version string, store *ArtifactStore, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		store:     store,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck reports liveness together with the artifact store state
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
		Services: map[string]interface{}{},
	}

	if hs.store != nil {
		artifacts := hs.checkArtifacts()
		status.Services["artifacts"] = artifacts
		if artifacts.Status != "ok" {
			status.Status = "degraded"
		}
	}

	hs.logger.DebugContext(ctx, "health check", slog.String("status", status.Status))
	return status
}

func (hs *HealthService) checkArtifacts() ServiceHealth {
	info, err := os.Stat(hs.store.Root())
	if err != nil || !info.IsDir() {
		return ServiceHealth{Status: "unavailable", Message: "artifact directory is missing"}
	}
	return ServiceHealth{Status: "ok"}
}
