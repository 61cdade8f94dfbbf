package natsadapter

import (
	"time"

	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
)

// tourPlannedEvent is the payload on atlas.tours.planned. Steps are left out;
// consumers rebuild them from the polyline.
type tourPlannedEvent struct {
	ID             string                `json:"id"`
	CityID         string                `json:"city_id,omitempty"`
	From           geospatial.Coordinate `json:"from"`
	To             geospatial.Coordinate `json:"to"`
	Polyline       string                `json:"polyline"`
	DistanceMeters float64               `json:"distance_meters"`
	Steps          int                   `json:"steps"`
	CreatedAt      time.Time             `json:"created_at"`
}
