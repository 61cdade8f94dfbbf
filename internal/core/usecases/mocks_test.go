package usecases_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
)

// --- Mock CityRepository ---

type mockCityRepo struct {
	upsertFn    func(ctx context.Context, c *domain.City) error
	getByNameFn func(ctx context.Context, name string) (*domain.City, error)
	listFn      func(ctx context.Context) ([]domain.City, error)
}

func (m *mockCityRepo) Upsert(ctx context.Context, c *domain.City) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, c)
	}
	return nil
}

func (m *mockCityRepo) GetByName(ctx context.Context, name string) (*domain.City, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(ctx, name)
	}
	return nil, domain.ErrNotFound
}

func (m *mockCityRepo) List(ctx context.Context) ([]domain.City, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- Mock TourRepository ---

type mockTourRepo struct {
	created  []*domain.Tour
	byID     map[string]*domain.Tour
	createFn func(ctx context.Context, t *domain.Tour) error
}

func newMockTourRepo() *mockTourRepo {
	return &mockTourRepo{byID: map[string]*domain.Tour{}}
}

func (m *mockTourRepo) Create(ctx context.Context, t *domain.Tour) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, t); err != nil {
			return err
		}
	}
	m.created = append(m.created, t)
	// Stored tours only keep the polyline.
	stored := *t
	stored.Path, stored.Steps = nil, nil
	m.byID[t.ID] = &stored
	return nil
}

func (m *mockTourRepo) GetByID(ctx context.Context, id string) (*domain.Tour, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTourRepo) ListByCity(ctx context.Context, cityID string, limit int) ([]domain.Tour, error) {
	var out []domain.Tour
	for _, t := range m.created {
		if t.CityID == cityID && len(out) < limit {
			cp := *m.byID[t.ID]
			out = append(out, cp)
		}
	}
	return out, nil
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.sets++
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Mock DirectionsProvider ---

type mockDirections struct {
	routeFn func(ctx context.Context, from, to geospatial.Coordinate) (*domain.WalkingRoute, error)
	calls   int
}

func (m *mockDirections) WalkingRoute(ctx context.Context, from, to geospatial.Coordinate) (*domain.WalkingRoute, error) {
	m.calls++
	if m.routeFn != nil {
		return m.routeFn(ctx, from, to)
	}
	return &domain.WalkingRoute{Path: []geospatial.Coordinate{from, to}}, nil
}

// --- Mock StaticMapBuilder ---

type mockMaps struct{}

func (mockMaps) StepImageURL(center geospatial.Coordinate, bearing float64, polyline string) string {
	return fmt.Sprintf("map://%.5f,%.5f/%.2f/%s", center.Lon, center.Lat, bearing, polyline)
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	planned  []*domain.Tour
	steps    []*domain.WalkStep
	statuses []*domain.WalkStatusEvent
	err      error
}

func (m *mockPublisher) PublishTourPlanned(ctx context.Context, t *domain.Tour) error {
	m.planned = append(m.planned, t)
	return m.err
}

func (m *mockPublisher) PublishWalkStep(ctx context.Context, s *domain.WalkStep) error {
	m.steps = append(m.steps, s)
	return m.err
}

func (m *mockPublisher) PublishWalkStatus(ctx context.Context, e *domain.WalkStatusEvent) error {
	m.statuses = append(m.statuses, e)
	return m.err
}

// --- Mock WalkScheduler ---

type mockScheduler struct {
	startFn func(ctx context.Context, req domain.WalkRequest) (string, string, error)
	reqs    []domain.WalkRequest
}

func (m *mockScheduler) StartWalk(ctx context.Context, req domain.WalkRequest) (string, string, error) {
	m.reqs = append(m.reqs, req)
	if m.startFn != nil {
		return m.startFn(ctx, req)
	}
	return "walk-" + req.TourID, "run-1", nil
}

func paris() *domain.City {
	return &domain.City{
		ID:          "c0a80101-0000-0000-0000-000000000001",
		Name:        "Paris",
		Coordinates: geospatial.Coordinate{Lon: 2.3522, Lat: 48.8566},
		Landmarks: []domain.Landmark{
			{Name: "Eiffel Tower", Coordinates: geospatial.Coordinate{Lon: 2.2945, Lat: 48.8584}},
			{Name: "Louvre Museum", Coordinates: geospatial.Coordinate{Lon: 2.3376, Lat: 48.8606}},
		},
	}
}
