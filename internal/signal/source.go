package signal

import (
	"context"
	"strings"
	"time"

	"tokenpilot/internal/models"
)

type HealthStatus struct {
	Status     string
	LastPollAt *time.Time
	LastError  *string
	Details    map[string]any
}

// Source produces directional trade signals on demand.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]models.Signal, error)
	Health() HealthStatus
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func strPtr(s string) *string {
	val := strings.TrimSpace(s)
	if val == "" {
		return nil
	}
	return &val
}
