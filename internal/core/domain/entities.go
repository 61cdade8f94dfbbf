package domain

import (
	"errors"
	"time"

	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
)

var (
	// ErrNotFound is returned by repositories when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTour is returned when a tour request cannot be planned.
	ErrInvalidTour = errors.New("invalid tour")
	// ErrUnavailable is returned when an optional backend is not configured.
	ErrUnavailable = errors.New("unavailable")
)

// City is a destination in the guide, with its landmarks and culture notes.
type City struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Image       string                `json:"image,omitempty"`
	Description string                `json:"description,omitempty"`
	Coordinates geospatial.Coordinate `json:"coordinates"`
	Landmarks   []Landmark            `json:"landmarks"`
	Culture     []CultureItem         `json:"culture"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Landmark returns the city's landmark whose name matches case-insensitively.
func (c *City) Landmark(name string) (*Landmark, bool) {
	for i := range c.Landmarks {
		if equalFold(c.Landmarks[i].Name, name) {
			return &c.Landmarks[i], true
		}
	}
	return nil, false
}

// Landmark is a point of interest inside a city.
type Landmark struct {
	ID          string                `json:"id,omitempty"`
	Name        string                `json:"name"`
	Info        string                `json:"info,omitempty"`
	Coordinates geospatial.Coordinate `json:"coordinates"`
	Facts       []string              `json:"facts"`
	Sound       string                `json:"sound,omitempty"`
	Story       string                `json:"story,omitempty"` // narration text
}

// CultureItem is a short note about local culture.
type CultureItem struct {
	Name string `json:"name"`
	Info string `json:"info"`
}

// WalkingRoute is the geometry returned by a directions provider.
type WalkingRoute struct {
	Path            []geospatial.Coordinate `json:"path"`
	DistanceMeters  float64                 `json:"distance_meters"`
	DurationSeconds float64                 `json:"duration_seconds"`
}

// Tour is a planned walk between two points.
type Tour struct {
	ID              string                  `json:"id"`
	CityID          string                  `json:"city_id,omitempty"`
	FromLandmark    string                  `json:"from_landmark,omitempty"`
	ToLandmark      string                  `json:"to_landmark,omitempty"`
	From            geospatial.Coordinate   `json:"from"`
	To              geospatial.Coordinate   `json:"to"`
	Polyline        string                  `json:"polyline"`
	Path            []geospatial.Coordinate `json:"path"`
	Steps           []TourStep              `json:"steps"`
	DistanceMeters  float64                 `json:"distance_meters"`
	DurationSeconds float64                 `json:"duration_seconds"`
	CreatedAt       time.Time               `json:"created_at"`
}

// TourStep is one point on the route with the camera heading toward the next.
type TourStep struct {
	Index    int                   `json:"index"`
	Position geospatial.Coordinate `json:"position"`
	Bearing  float64               `json:"bearing"`
	Compass  string                `json:"compass"`
	MapURL   string                `json:"map_url,omitempty"`
}

// WalkStep is one tick of a simulated walk.
type WalkStep struct {
	TourID         string                `json:"tour_id"`
	Index          int                   `json:"index"`
	Total          int                   `json:"total"`
	Position       geospatial.Coordinate `json:"position"`
	Bearing        float64               `json:"bearing"`
	Compass        string                `json:"compass"`
	DistanceMeters float64               `json:"distance_meters"`
	Progress       float64               `json:"progress"`
	Time           time.Time             `json:"time,omitempty"`
}

// WalkStatus values.
const (
	WalkStarted   = "started"
	WalkCompleted = "completed"
	WalkAborted   = "aborted"
)

// WalkStatusEvent announces a change in a simulated walk's lifecycle.
type WalkStatusEvent struct {
	TourID string    `json:"tour_id"`
	RunID  string    `json:"run_id,omitempty"`
	Status string    `json:"status"`
	Reason string    `json:"reason,omitempty"`
	Time   time.Time `json:"time"`
}

// WalkRequest asks the scheduler to run a simulated walk.
type WalkRequest struct {
	TourID       string        `json:"tour_id"`
	StrideMeters float64       `json:"stride_meters"`
	Interval     time.Duration `json:"interval"`
}

// Walk describes a scheduled simulated walk.
type Walk struct {
	TourID       string        `json:"tour_id"`
	WorkflowID   string        `json:"workflow_id"`
	RunID        string        `json:"run_id"`
	Steps        int           `json:"steps"`
	StrideMeters float64       `json:"stride_meters"`
	Interval     time.Duration `json:"interval"`
	StartedAt    time.Time     `json:"started_at"`
}
