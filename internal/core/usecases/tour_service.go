package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/core/ports"
	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
	"github.com/odysseyatlas/atlas/internal/pkg/metrics"
	"github.com/odysseyatlas/atlas/internal/pkg/telemetry"
)

var tracer = otel.Tracer("github.com/odysseyatlas/atlas/internal/core/usecases")

// TourService plans walking tours and rebuilds them from storage.
type TourService struct {
	tours      ports.TourRepository
	cities     *CityService
	directions ports.DirectionsProvider
	maps       ports.StaticMapBuilder
	publisher  ports.EventPublisher
	now        func() time.Time
}

// NewTourService creates a new TourService. maps and publisher may be nil.
func NewTourService(
	tours ports.TourRepository,
	cities *CityService,
	directions ports.DirectionsProvider,
	maps ports.StaticMapBuilder,
	publisher ports.EventPublisher,
) *TourService {
	return &TourService{
		tours:      tours,
		cities:     cities,
		directions: directions,
		maps:       maps,
		publisher:  publisher,
		now:        time.Now,
	}
}

// Plan fetches a walking route between two coordinates and stores it as a tour.
func (s *TourService) Plan(ctx context.Context, from, to geospatial.Coordinate) (*domain.Tour, error) {
	return s.plan(ctx, &domain.Tour{From: from, To: to}, "coordinates")
}

// PlanInCity plans a tour between two landmarks of a city.
func (s *TourService) PlanInCity(ctx context.Context, cityName, fromLandmark, toLandmark string) (*domain.Tour, error) {
	city, err := s.cities.GetByName(ctx, cityName)
	if err != nil {
		return nil, err
	}

	from, ok := city.Landmark(fromLandmark)
	if !ok {
		return nil, fmt.Errorf("landmark %q in %s: %w", fromLandmark, city.Name, domain.ErrNotFound)
	}
	to, ok := city.Landmark(toLandmark)
	if !ok {
		return nil, fmt.Errorf("landmark %q in %s: %w", toLandmark, city.Name, domain.ErrNotFound)
	}
	if from.Name == to.Name {
		return nil, fmt.Errorf("tour must connect two different landmarks: %w", domain.ErrInvalidTour)
	}

	return s.plan(ctx, &domain.Tour{
		CityID:       city.ID,
		FromLandmark: from.Name,
		ToLandmark:   to.Name,
		From:         from.Coordinates,
		To:           to.Coordinates,
	}, "landmarks")
}

func (s *TourService) plan(ctx context.Context, tour *domain.Tour, source string) (*domain.Tour, error) {
	ctx, span := tracer.Start(ctx, "TourService.Plan")
	defer span.End()
	span.SetAttributes(
		telemetry.AttrTourSource.String(source),
		telemetry.AttrFromLon.Float64(tour.From.Lon),
		telemetry.AttrFromLat.Float64(tour.From.Lat),
		telemetry.AttrToLon.Float64(tour.To.Lon),
		telemetry.AttrToLat.Float64(tour.To.Lat),
	)

	if err := geospatial.Validate(tour.From); err != nil {
		return nil, fmt.Errorf("from: %w: %w", domain.ErrInvalidTour, err)
	}
	if err := geospatial.Validate(tour.To); err != nil {
		return nil, fmt.Errorf("to: %w: %w", domain.ErrInvalidTour, err)
	}

	route, err := s.directions.WalkingRoute(ctx, tour.From, tour.To)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "directions")
		return nil, fmt.Errorf("walking route: %w", err)
	}
	// A bad path is the provider's fault, not the caller's.
	if len(route.Path) == 0 {
		span.SetStatus(codes.Error, "empty path")
		return nil, fmt.Errorf("directions returned an empty path: %w", domain.ErrUnavailable)
	}
	if err := geospatial.ValidatePath(route.Path); err != nil {
		span.SetStatus(codes.Error, "invalid path")
		return nil, fmt.Errorf("directions path: %w: %v", domain.ErrUnavailable, err)
	}

	tour.ID = uuid.NewString()
	tour.Path = route.Path
	tour.Polyline = geospatial.EncodePath(route.Path)
	tour.Steps = s.BuildSteps(route.Path, tour.Polyline)
	tour.DistanceMeters = route.DistanceMeters
	if tour.DistanceMeters == 0 {
		tour.DistanceMeters = geospatial.PathLength(route.Path)
	}
	tour.DurationSeconds = route.DurationSeconds
	tour.CreatedAt = s.now().UTC()
	span.SetAttributes(
		telemetry.AttrTourID.String(tour.ID),
		telemetry.AttrTourPoints.Int(len(tour.Path)),
	)

	if err := s.tours.Create(ctx, tour); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
		return nil, fmt.Errorf("save tour: %w", err)
	}

	metrics.ToursPlanned.WithLabelValues(source).Inc()
	metrics.TourPathPoints.Observe(float64(len(tour.Path)))

	if s.publisher != nil {
		if err := s.publisher.PublishTourPlanned(ctx, tour); err != nil {
			slog.WarnContext(ctx, "publish tour planned", "tour", tour.ID, "error", err)
		}
	}

	return tour, nil
}

// BuildSteps returns one step per path point. Each step faces the next point;
// the last step keeps the previous heading and a single point faces north.
func (s *TourService) BuildSteps(path []geospatial.Coordinate, polyline string) []domain.TourStep {
	steps := make([]domain.TourStep, len(path))
	var bearing float64
	for i, p := range path {
		if i+1 < len(path) {
			bearing = geospatial.Bearing(p, path[i+1])
		}
		steps[i] = domain.TourStep{
			Index:    i,
			Position: p,
			Bearing:  bearing,
			Compass:  geospatial.Compass(bearing),
		}
		if s.maps != nil {
			steps[i].MapURL = s.maps.StepImageURL(p, bearing, polyline)
		}
	}
	return steps
}

// Get returns a stored tour with its path and steps rebuilt from the polyline.
func (s *TourService) Get(ctx context.Context, id string) (*domain.Tour, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("tour %q: %w", id, domain.ErrNotFound)
	}

	tour, err := s.tours.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(tour); err != nil {
		return nil, err
	}
	return tour, nil
}

// ListByCity returns the most recent tours planned in the named city.
func (s *TourService) ListByCity(ctx context.Context, cityName string, limit int) ([]domain.Tour, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	city, err := s.cities.GetByName(ctx, cityName)
	if err != nil {
		return nil, err
	}

	tours, err := s.tours.ListByCity(ctx, city.ID, limit)
	if err != nil {
		return nil, err
	}
	for i := range tours {
		if err := s.hydrate(&tours[i]); err != nil {
			return nil, err
		}
	}
	return tours, nil
}

func (s *TourService) hydrate(tour *domain.Tour) error {
	path, err := geospatial.DecodePath(tour.Polyline)
	if err != nil {
		return fmt.Errorf("tour %s: %w", tour.ID, err)
	}
	tour.Path = path
	tour.Steps = s.BuildSteps(path, tour.Polyline)
	return nil
}

// IsClientError reports whether err was caused by the request rather than a backend.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidTour) || errors.Is(err, geospatial.ErrInvalidCoordinate)
}
