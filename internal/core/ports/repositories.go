package ports

import (
	"context"

	"github.com/odysseyatlas/atlas/internal/core/domain"
)

// CityRepository persists the city catalog.
type CityRepository interface {
	Upsert(ctx context.Context, city *domain.City) error
	// GetByName matches case-insensitively, preferring an exact name.
	GetByName(ctx context.Context, name string) (*domain.City, error)
	List(ctx context.Context) ([]domain.City, error)
}

// TourRepository persists planned tours. Only the encoded polyline is stored.
type TourRepository interface {
	Create(ctx context.Context, tour *domain.Tour) error
	GetByID(ctx context.Context, id string) (*domain.Tour, error)
	ListByCity(ctx context.Context, cityID string, limit int) ([]domain.Tour, error)
}
