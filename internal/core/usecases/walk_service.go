package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/core/ports"
	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
	"github.com/odysseyatlas/atlas/internal/pkg/metrics"
	"github.com/odysseyatlas/atlas/internal/pkg/telemetry"
)

// Walk limits.
const (
	MinStrideMeters = 1
	MaxStrideMeters = 1000
	MaxWalkSteps    = 2000
	MinWalkInterval = 100 * time.Millisecond
	MaxWalkInterval = time.Minute
)

// WalkService simulates a walker stepping along a planned tour.
type WalkService struct {
	tours     *TourService
	scheduler ports.WalkScheduler
	stride    float64
	interval  time.Duration
	now       func() time.Time
}

// NewWalkService creates a new WalkService. scheduler may be nil, in which
// case walks can be previewed but not started.
func NewWalkService(tours *TourService, scheduler ports.WalkScheduler, stride float64, interval time.Duration) *WalkService {
	return &WalkService{
		tours:     tours,
		scheduler: scheduler,
		stride:    stride,
		interval:  interval,
		now:       time.Now,
	}
}

// DefaultStride is the stride used when callers pass none.
func (s *WalkService) DefaultStride() float64 { return s.stride }

// Steps resamples the tour path every strideMeters and returns the walk steps.
// A non-positive stride uses the configured default.
func (s *WalkService) Steps(ctx context.Context, tourID string, strideMeters float64) ([]domain.WalkStep, error) {
	stride, err := s.resolveStride(strideMeters)
	if err != nil {
		return nil, err
	}

	tour, err := s.tours.Get(ctx, tourID)
	if err != nil {
		return nil, err
	}

	steps := BuildWalkSteps(tour.ID, tour.Path, stride)
	if len(steps) > MaxWalkSteps {
		return nil, fmt.Errorf("stride %.0fm yields %d steps, limit is %d: %w",
			stride, len(steps), MaxWalkSteps, domain.ErrInvalidTour)
	}
	return steps, nil
}

// Start schedules a durable simulated walk along the tour.
func (s *WalkService) Start(ctx context.Context, tourID string, strideMeters float64, interval time.Duration) (*domain.Walk, error) {
	if s.scheduler == nil {
		return nil, fmt.Errorf("walk scheduler: %w", domain.ErrUnavailable)
	}

	if interval <= 0 {
		interval = s.interval
	}
	if interval < MinWalkInterval || interval > MaxWalkInterval {
		return nil, fmt.Errorf("interval %s outside [%s, %s]: %w",
			interval, MinWalkInterval, MaxWalkInterval, domain.ErrInvalidTour)
	}

	ctx, span := tracer.Start(ctx, "WalkService.Start")
	defer span.End()
	span.SetAttributes(telemetry.AttrTourID.String(tourID))

	steps, err := s.Steps(ctx, tourID, strideMeters)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	stride, _ := s.resolveStride(strideMeters)
	span.SetAttributes(
		telemetry.AttrWalkStride.Float64(stride),
		telemetry.AttrWalkSteps.Int(len(steps)),
	)

	workflowID, runID, err := s.scheduler.StartWalk(ctx, domain.WalkRequest{
		TourID:       tourID,
		StrideMeters: stride,
		Interval:     interval,
	})
	if err != nil {
		return nil, fmt.Errorf("start walk: %w", err)
	}

	metrics.WalksStarted.Inc()
	slog.InfoContext(ctx, "walk started", "tour", tourID, "workflow", workflowID, "steps", len(steps))

	return &domain.Walk{
		TourID:       tourID,
		WorkflowID:   workflowID,
		RunID:        runID,
		Steps:        len(steps),
		StrideMeters: stride,
		Interval:     interval,
		StartedAt:    s.now().UTC(),
	}, nil
}

// RecordStatus counts walk lifecycle events.
func (s *WalkService) RecordStatus(ctx context.Context, event *domain.WalkStatusEvent) error {
	metrics.WalkOutcomes.WithLabelValues(outcomeLabel(event.Status)).Inc()
	if event.Status == domain.WalkAborted {
		slog.WarnContext(ctx, "walk aborted", "tour", event.TourID, "run", event.RunID, "reason", event.Reason)
	}
	return nil
}

func (s *WalkService) resolveStride(stride float64) (float64, error) {
	if stride <= 0 {
		stride = s.stride
	}
	if stride < MinStrideMeters || stride > MaxStrideMeters {
		return 0, fmt.Errorf("stride %.1fm outside [%d, %d]: %w",
			stride, MinStrideMeters, MaxStrideMeters, domain.ErrInvalidTour)
	}
	return stride, nil
}

// BuildWalkSteps resamples path every stride meters and annotates each position
// with its heading, the distance walked so far and the fraction of the path done.
func BuildWalkSteps(tourID string, path []geospatial.Coordinate, stride float64) []domain.WalkStep {
	points := geospatial.Resample(path, stride)
	if len(points) == 0 {
		return nil
	}

	// Resampled points sit exactly one stride apart along the path, so the
	// distance walked is measured along the path, not between the points.
	total := geospatial.PathLength(path)
	steps := make([]domain.WalkStep, len(points))
	var bearing, walked float64
	for i, p := range points {
		switch {
		case i == len(points)-1:
			walked = total
		case stride > 0:
			walked = float64(i) * stride
		case i > 0:
			walked += geospatial.Distance(points[i-1], p)
		}
		if i+1 < len(points) {
			bearing = geospatial.Bearing(p, points[i+1])
		}
		progress := 1.0
		if total > 0 {
			progress = walked / total
		}
		steps[i] = domain.WalkStep{
			TourID:         tourID,
			Index:          i,
			Total:          len(points),
			Position:       p,
			Bearing:        bearing,
			Compass:        geospatial.Compass(bearing),
			DistanceMeters: walked,
			Progress:       progress,
		}
	}
	return steps
}

// outcomeLabel bounds the status label to the known lifecycle values.
func outcomeLabel(status string) string {
	switch status {
	case domain.WalkStarted, domain.WalkCompleted, domain.WalkAborted:
		return status
	default:
		return "unknown"
	}
}
