package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/core/ports"
	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
	"github.com/odysseyatlas/atlas/internal/pkg/metrics"
)

const cityCacheTTL = 600 // 10 min

// Name lookups are cached under a generation so that an upsert invalidates
// every lookup key at once, substring matches included.
const (
	cityAllKey = "cities:all"
	cityGenKey = "cities:gen"
)

// CityService handles the city and landmark catalog.
type CityService struct {
	cities ports.CityRepository
	cache  ports.CacheService
}

// NewCityService creates a new CityService. cache may be nil.
func NewCityService(cities ports.CityRepository, cache ports.CacheService) *CityService {
	return &CityService{cities: cities, cache: cache}
}

// List returns every city in the catalog.
func (s *CityService) List(ctx context.Context) ([]domain.City, error) {
	var cities []domain.City
	if s.cached(ctx, cityAllKey, &cities) {
		return cities, nil
	}

	cities, err := s.cities.List(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cityAllKey, cities)
	return cities, nil
}

// GetByName returns the city whose name matches case-insensitively.
func (s *CityService) GetByName(ctx context.Context, name string) (*domain.City, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("city name must not be empty")
	}

	cacheKey := s.nameKey(ctx, name)
	var city domain.City
	if s.cached(ctx, cacheKey, &city) {
		return &city, nil
	}

	c, err := s.cities.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cacheKey, c)
	return c, nil
}

// Landmarks returns the landmarks of the named city.
func (s *CityService) Landmarks(ctx context.Context, name string) ([]domain.Landmark, error) {
	c, err := s.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Landmarks, nil
}

// Upsert validates and stores a city, then drops the cached catalog.
func (s *CityService) Upsert(ctx context.Context, city *domain.City) error {
	if strings.TrimSpace(city.Name) == "" {
		return fmt.Errorf("city name must not be empty")
	}
	if err := geospatial.Validate(city.Coordinates); err != nil {
		return fmt.Errorf("city %s: %w", city.Name, err)
	}
	for _, l := range city.Landmarks {
		if err := geospatial.Validate(l.Coordinates); err != nil {
			return fmt.Errorf("city %s landmark %s: %w", city.Name, l.Name, err)
		}
	}

	if err := s.cities.Upsert(ctx, city); err != nil {
		return fmt.Errorf("upsert city %s: %w", city.Name, err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cityGenKey, []byte(uuid.NewString()), 0)
		_ = s.cache.Delete(ctx, cityAllKey)
	}
	return nil
}

func (s *CityService) nameKey(ctx context.Context, name string) string {
	gen := "0"
	if s.cache != nil {
		if b, err := s.cache.Get(ctx, cityGenKey); err == nil && len(b) > 0 {
			gen = string(b)
		}
	}
	return "cities:name:" + gen + ":" + strings.ToLower(name)
}

func (s *CityService) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil || json.Unmarshal(data, dst) != nil {
		metrics.CacheMisses.WithLabelValues("cities").Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues("cities").Inc()
	return true
}

func (s *CityService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, cityCacheTTL)
	}
}
