package http

import (
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	natsadapter "github.com/odysseyatlas/atlas/internal/adapters/nats"
	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
)

// ListCitiesHandler returns the city catalog, paginated.
func ListCitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cities, err := deps.Cities.List(c.UserContext())
		if err != nil {
			return errFromService(c, err, "cities not found")
		}

		offset, limit := pageParams(c)
		page, pg := paginate(cities, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetCityHandler returns a city with its landmarks and culture notes.
func GetCityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := cityParam(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		city, err := deps.Cities.GetByName(c.UserContext(), name)
		if err != nil {
			return errFromService(c, err, "city not found")
		}
		return c.JSON(city)
	}
}

// CityLandmarksHandler returns only the landmarks of a city.
func CityLandmarksHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := cityParam(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		landmarks, err := deps.Cities.Landmarks(c.UserContext(), name)
		if err != nil {
			return errFromService(c, err, "city not found")
		}
		return c.JSON(landmarks)
	}
}

// CityToursHandler lists the most recent tours planned in a city.
func CityToursHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := cityParam(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		tours, err := deps.Tours.ListByCity(c.UserContext(), name, c.QueryInt("limit", 0))
		if err != nil {
			return errFromService(c, err, "city not found")
		}
		return c.JSON(tours)
	}
}

// PlanTourRequest selects the tour endpoints either by coordinates or by
// landmark names within a city.
type PlanTourRequest struct {
	From *geospatial.Coordinate `json:"from,omitempty"`
	To   *geospatial.Coordinate `json:"to,omitempty"`

	City         string `json:"city,omitempty" validate:"max=100"`
	FromLandmark string `json:"from_landmark,omitempty" validate:"required_with=City,max=200"`
	ToLandmark   string `json:"to_landmark,omitempty" validate:"required_with=City,max=200"`
}

// PlanTourHandler plans and stores a walking tour.
// POST /v1/tours {"from":[lon,lat],"to":[lon,lat]}
// POST /v1/tours {"city":"Paris","from_landmark":"Eiffel Tower","to_landmark":"Louvre"}
func PlanTourHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req PlanTourRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body: "+err.Error())
		}
		if err := validateStruct(req); err != nil {
			return errBadRequest(c, err.Error())
		}

		var (
			tour *domain.Tour
			err  error
		)
		switch {
		case req.City != "":
			tour, err = deps.Tours.PlanInCity(c.UserContext(), req.City, req.FromLandmark, req.ToLandmark)
		case req.From != nil && req.To != nil:
			tour, err = deps.Tours.Plan(c.UserContext(), *req.From, *req.To)
		default:
			return errBadRequest(c, "either from and to, or city with from_landmark and to_landmark, are required")
		}
		if err != nil {
			return errFromService(c, err, "landmark not found")
		}

		c.Location("/v1/tours/" + tour.ID)
		return c.Status(fiber.StatusCreated).JSON(tour)
	}
}

// GetTourHandler returns a stored tour by ID.
func GetTourHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tour, err := deps.Tours.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err, "tour not found")
		}
		return c.JSON(tour)
	}
}

// WalkPreview is the full step sequence a walk of a tour would emit.
type WalkPreview struct {
	TourID       string            `json:"tour_id"`
	StrideMeters float64           `json:"stride_meters"`
	Steps        []domain.WalkStep `json:"steps"`
}

// WalkPreviewHandler returns the walk steps for a tour without starting it.
// GET /v1/tours/:id/walk?stride=25
func WalkPreviewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stride := c.QueryFloat("stride", 0)
		if stride < 0 {
			return errBadRequest(c, "stride must not be negative")
		}
		steps, err := deps.Walks.Steps(c.UserContext(), c.Params("id"), stride)
		if err != nil {
			return errFromService(c, err, "tour not found")
		}
		if stride <= 0 {
			stride = deps.Walks.DefaultStride()
		}
		return c.JSON(WalkPreview{TourID: c.Params("id"), StrideMeters: stride, Steps: steps})
	}
}

// StartWalkRequest tunes a simulated walk. Zero values use server defaults.
type StartWalkRequest struct {
	StrideMeters float64 `json:"stride_meters" validate:"gte=0"`
	IntervalMS   int64   `json:"interval_ms" validate:"gte=0"`
}

// WalkResponse describes a walk that was accepted for execution.
type WalkResponse struct {
	TourID       string    `json:"tour_id"`
	WorkflowID   string    `json:"workflow_id"`
	RunID        string    `json:"run_id"`
	Steps        int       `json:"steps"`
	StrideMeters float64   `json:"stride_meters"`
	IntervalMS   int64     `json:"interval_ms"`
	StartedAt    time.Time `json:"started_at"`
	StepSubject  string    `json:"step_subject"`
}

// StartWalkHandler starts a durable simulated walk along a tour. Steps are
// streamed over NATS and the /ws "walk" channel.
func StartWalkHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req StartWalkRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid JSON body: "+err.Error())
			}
		}
		if err := validateStruct(req); err != nil {
			return errBadRequest(c, err.Error())
		}

		interval := time.Duration(req.IntervalMS) * time.Millisecond
		walk, err := deps.Walks.Start(c.UserContext(), c.Params("id"), req.StrideMeters, interval)
		if err != nil {
			return errFromService(c, err, "tour not found")
		}

		return c.Status(fiber.StatusAccepted).JSON(WalkResponse{
			TourID:       walk.TourID,
			WorkflowID:   walk.WorkflowID,
			RunID:        walk.RunID,
			Steps:        walk.Steps,
			StrideMeters: walk.StrideMeters,
			IntervalMS:   walk.Interval.Milliseconds(),
			StartedAt:    walk.StartedAt,
			StepSubject:  natsadapter.WalkStepSubject(walk.TourID),
		})
	}
}

// BearingResponse is the heading between two points.
type BearingResponse struct {
	From           geospatial.Coordinate `json:"from"`
	To             geospatial.Coordinate `json:"to"`
	Bearing        float64               `json:"bearing"`
	Compass        string                `json:"compass"`
	DistanceMeters float64               `json:"distance_meters"`
}

// BearingHandler computes the initial bearing from one point to another.
// GET /v1/geometry/bearing?from=2.2945,48.8584&to=2.3376,48.8606
func BearingHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := parseLonLat("from", c.Query("from"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		to, err := parseLonLat("to", c.Query("to"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		b := geospatial.Bearing(from, to)
		return c.JSON(BearingResponse{
			From:           from,
			To:             to,
			Bearing:        geospatial.RoundBearing(b, 2),
			Compass:        geospatial.Compass(b),
			DistanceMeters: math.Round(geospatial.Distance(from, to)*10) / 10,
		})
	}
}

// PolylineRequest is a path to encode.
type PolylineRequest struct {
	Points []geospatial.Coordinate `json:"points" validate:"required,min=1,max=10000,dive"`
}

// PolylineResponse carries both representations of a path.
type PolylineResponse struct {
	Polyline string                  `json:"polyline"`
	Points   []geospatial.Coordinate `json:"points"`
}

// EncodePolylineHandler encodes a path with the precision-5 polyline algorithm.
func EncodePolylineHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req PolylineRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body: "+err.Error())
		}
		if err := validateStruct(req); err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.JSON(PolylineResponse{Polyline: geospatial.EncodePath(req.Points), Points: req.Points})
	}
}

// DecodePolylineHandler decodes an encoded polyline back into points.
// GET /v1/geometry/polyline?encoded=...
func DecodePolylineHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		encoded := c.Query("encoded")
		if encoded == "" {
			return errBadRequest(c, "encoded query parameter is required")
		}
		points, err := geospatial.DecodePath(encoded)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.JSON(PolylineResponse{Polyline: encoded, Points: points})
	}
}

func cityParam(c *fiber.Ctx) (string, error) {
	raw, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid city name")
	}
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "city name is required")
	}
	if len(name) > 100 {
		return "", fiber.NewError(fiber.StatusBadRequest, "city name too long (max 100 characters)")
	}
	return name, nil
}
