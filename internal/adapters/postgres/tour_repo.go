package postgres

import (
	"context"

	"github.com/odysseyatlas/atlas/internal/core/domain"
)

// TourRepo implements ports.TourRepository. Only the encoded polyline of a
// tour is stored; callers decode it back into a path.
type TourRepo struct {
	db *DB
}

func NewTourRepo(db *DB) *TourRepo { return &TourRepo{db: db} }

const tourColumns = `
	id, COALESCE(city_id::text, ''), from_landmark, to_landmark,
	from_lon, from_lat, to_lon, to_lat, polyline,
	distance_meters, duration_seconds, created_at`

func (r *TourRepo) Create(ctx context.Context, t *domain.Tour) error {
	var cityID any
	if t.CityID != "" {
		cityID = t.CityID
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO tours (id, city_id, from_landmark, to_landmark,
		                   from_lon, from_lat, to_lon, to_lat, polyline,
		                   distance_meters, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, cityID, t.FromLandmark, t.ToLandmark,
		t.From.Lon, t.From.Lat, t.To.Lon, t.To.Lat, t.Polyline,
		t.DistanceMeters, t.DurationSeconds, t.CreatedAt)
	return err
}

func (r *TourRepo) GetByID(ctx context.Context, id string) (*domain.Tour, error) {
	var t domain.Tour
	err := r.db.Pool.QueryRow(ctx, `SELECT `+tourColumns+` FROM tours WHERE id = $1`, id).Scan(
		&t.ID, &t.CityID, &t.FromLandmark, &t.ToLandmark,
		&t.From.Lon, &t.From.Lat, &t.To.Lon, &t.To.Lat, &t.Polyline,
		&t.DistanceMeters, &t.DurationSeconds, &t.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "tour "+id)
	}
	return &t, nil
}

func (r *TourRepo) ListByCity(ctx context.Context, cityID string, limit int) ([]domain.Tour, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+tourColumns+`
		FROM tours WHERE city_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, cityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tours []domain.Tour
	for rows.Next() {
		var t domain.Tour
		if err := rows.Scan(
			&t.ID, &t.CityID, &t.FromLandmark, &t.ToLandmark,
			&t.From.Lon, &t.From.Lat, &t.To.Lon, &t.To.Lat, &t.Polyline,
			&t.DistanceMeters, &t.DurationSeconds, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		tours = append(tours, t)
	}
	return tours, rows.Err()
}
