package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scttfrdmn/triadkit-go/health"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// HealthChecker reports whether the reasoning backend is usable.
// *health.HealthCache implements it.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// ModeSelector picks online or offline execution. A missing connectivity
// check or health checker counts as available.
type ModeSelector struct {
	connectivity health.Connectivity
	health       HealthChecker
	logger       *slog.Logger
}

// NewModeSelector creates a selector.
func NewModeSelector(connectivity health.Connectivity, checker HealthChecker, logger *slog.Logger) *ModeSelector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModeSelector{connectivity: connectivity, health: checker, logger: logger}
}

// Select returns ModeOffline when there is no connectivity or the backend
// is unhealthy, and ModeOnline otherwise. Check failures never surface.
func (s *ModeSelector) Select(ctx context.Context) (mode triad.Mode) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WarnContext(ctx, "mode selection failed", "error", fmt.Sprint(r))
			mode = triad.ModeOffline
		}
	}()

	if s.connectivity != nil && !s.connectivity.Online(ctx) {
		s.logger.DebugContext(ctx, "no connectivity, selecting offline")
		return triad.ModeOffline
	}
	if s.health != nil && !s.health.Healthy(ctx) {
		s.logger.DebugContext(ctx, "backend unhealthy, selecting offline")
		return triad.ModeOffline
	}
	return triad.ModeOnline
}
