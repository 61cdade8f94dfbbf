package ports

import (
	"context"

	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishTourPlanned(ctx context.Context, tour *domain.Tour) error
	PublishWalkStep(ctx context.Context, step *domain.WalkStep) error
	PublishWalkStatus(ctx context.Context, event *domain.WalkStatusEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeWalkStatus(ctx context.Context, handler func(ctx context.Context, event *domain.WalkStatusEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// DirectionsProvider fetches walking routes between two points.
type DirectionsProvider interface {
	WalkingRoute(ctx context.Context, from, to geospatial.Coordinate) (*domain.WalkingRoute, error)
}

// StaticMapBuilder renders the URL of a static map image for one tour step.
type StaticMapBuilder interface {
	StepImageURL(center geospatial.Coordinate, bearing float64, polyline string) string
}

// WalkScheduler starts durable simulated walks.
type WalkScheduler interface {
	StartWalk(ctx context.Context, req domain.WalkRequest) (workflowID, runID string, err error)
}
