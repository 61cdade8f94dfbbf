package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/core/ports"
	"github.com/odysseyatlas/atlas/internal/core/usecases"
	"github.com/odysseyatlas/atlas/internal/pkg/metrics"
)

// WalkActivities holds the activity implementations for the walk workflow.
type WalkActivities struct {
	Walks     *usecases.WalkService
	Publisher ports.EventPublisher
}

// LoadWalkSteps resamples a stored tour into walk steps.
func (a *WalkActivities) LoadWalkSteps(ctx context.Context, tourID string, strideMeters float64) ([]domain.WalkStep, error) {
	steps, err := a.Walks.Steps(ctx, tourID, strideMeters)
	if err != nil {
		return nil, fmt.Errorf("load walk %s: %w", tourID, err)
	}
	return steps, nil
}

// PublishWalkStep broadcasts one position of the walker.
func (a *WalkActivities) PublishWalkStep(ctx context.Context, step domain.WalkStep) error {
	if a.Publisher == nil {
		slog.Info("walk step (no publisher)", "tour", step.TourID, "index", step.Index, "compass", step.Compass)
		return nil
	}
	if err := a.Publisher.PublishWalkStep(ctx, &step); err != nil {
		return fmt.Errorf("publish step %d of %s: %w", step.Index, step.TourID, err)
	}
	metrics.WalkStepsPublished.Inc()
	return nil
}

// PublishWalkStatus broadcasts a lifecycle change of the walk.
func (a *WalkActivities) PublishWalkStatus(ctx context.Context, event domain.WalkStatusEvent) error {
	if a.Publisher == nil {
		slog.Info("walk status (no publisher)", "tour", event.TourID, "status", event.Status)
		return nil
	}
	if err := a.Publisher.PublishWalkStatus(ctx, &event); err != nil {
		return fmt.Errorf("publish %s status of %s: %w", event.Status, event.TourID, err)
	}
	return nil
}
