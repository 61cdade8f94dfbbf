package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odysseyatlas/atlas/internal/core/domain"
)

// CityRepo implements ports.CityRepository.
type CityRepo struct {
	db *DB
}

func NewCityRepo(db *DB) *CityRepo { return &CityRepo{db: db} }

// Upsert stores a city and replaces its landmarks in one transaction.
func (r *CityRepo) Upsert(ctx context.Context, city *domain.City) error {
	city.Name = normalizeCityName(city.Name)
	culture := city.Culture
	if culture == nil {
		culture = []domain.CultureItem{}
	}

	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO cities (name, image, description, lon, lat, culture)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT ((lower(name))) DO UPDATE
			SET name = EXCLUDED.name, image = EXCLUDED.image, description = EXCLUDED.description,
			    lon = EXCLUDED.lon, lat = EXCLUDED.lat, culture = EXCLUDED.culture, updated_at = now()
			RETURNING id, created_at
		`, city.Name, city.Image, city.Description,
			city.Coordinates.Lon, city.Coordinates.Lat, culture,
		).Scan(&city.ID, &city.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert city: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM landmarks WHERE city_id = $1`, city.ID); err != nil {
			return fmt.Errorf("clear landmarks: %w", err)
		}
		if len(city.Landmarks) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i, l := range city.Landmarks {
			facts := l.Facts
			if facts == nil {
				facts = []string{}
			}
			batch.Queue(`
				INSERT INTO landmarks (city_id, position, name, info, lon, lat, facts, sound, story)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING id
			`, city.ID, i, l.Name, l.Info, l.Coordinates.Lon, l.Coordinates.Lat, facts, l.Sound, l.Story)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for i := range city.Landmarks {
			if err := br.QueryRow().Scan(&city.Landmarks[i].ID); err != nil {
				return fmt.Errorf("insert landmark %s: %w", city.Landmarks[i].Name, err)
			}
		}
		return br.Close()
	})
}

// GetByName matches name as a case-insensitive substring. An exact match
// wins, then the shortest name.
func (r *CityRepo) GetByName(ctx context.Context, name string) (*domain.City, error) {
	var c domain.City
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, image, description, lon, lat, culture, created_at
		FROM cities
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY lower(name) = lower($2) DESC, length(name), name
		LIMIT 1
	`, escapeLike(name), name).Scan(
		&c.ID, &c.Name, &c.Image, &c.Description,
		&c.Coordinates.Lon, &c.Coordinates.Lat, &c.Culture, &c.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "city "+name)
	}

	landmarks, err := r.landmarks(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	c.Landmarks = landmarks[c.ID]
	if c.Landmarks == nil {
		c.Landmarks = []domain.Landmark{}
	}
	return &c, nil
}

// List returns every city with its landmarks, ordered by name.
func (r *CityRepo) List(ctx context.Context) ([]domain.City, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, image, description, lon, lat, culture, created_at
		FROM cities ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cities []domain.City
	var ids []string
	for rows.Next() {
		var c domain.City
		if err := rows.Scan(&c.ID, &c.Name, &c.Image, &c.Description,
			&c.Coordinates.Lon, &c.Coordinates.Lat, &c.Culture, &c.CreatedAt); err != nil {
			return nil, err
		}
		cities = append(cities, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cities) == 0 {
		return cities, nil
	}

	landmarks, err := r.landmarks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range cities {
		cities[i].Landmarks = landmarks[cities[i].ID]
		if cities[i].Landmarks == nil {
			cities[i].Landmarks = []domain.Landmark{}
		}
	}
	return cities, nil
}

func (r *CityRepo) landmarks(ctx context.Context, cityIDs []string) (map[string][]domain.Landmark, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT city_id, id, name, info, lon, lat, facts, sound, story
		FROM landmarks
		WHERE city_id = ANY($1::uuid[])
		ORDER BY city_id, position
	`, cityIDs)
	if err != nil {
		return nil, fmt.Errorf("landmarks: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Landmark, len(cityIDs))
	for rows.Next() {
		var cityID string
		var l domain.Landmark
		if err := rows.Scan(&cityID, &l.ID, &l.Name, &l.Info,
			&l.Coordinates.Lon, &l.Coordinates.Lat, &l.Facts, &l.Sound, &l.Story); err != nil {
			return nil, err
		}
		out[cityID] = append(out[cityID], l)
	}
	return out, rows.Err()
}

// normalizeCityName trims the name used as the upsert conflict key.
func normalizeCityName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
