package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services.
// Fields resolve through their json tags on the domain types.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lon": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{Type: graphql.Float},
		},
	})

	landmarkType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Landmark",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"info":        &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: coordinateType},
			"facts":       &graphql.Field{Type: graphql.NewList(graphql.String)},
			"sound":       &graphql.Field{Type: graphql.String},
			"story":       &graphql.Field{Type: graphql.String},
		},
	})

	cultureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CultureItem",
		Fields: graphql.Fields{
			"name": &graphql.Field{Type: graphql.String},
			"info": &graphql.Field{Type: graphql.String},
		},
	})

	cityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "City",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"image":       &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: coordinateType},
			"landmarks":   &graphql.Field{Type: graphql.NewList(landmarkType)},
			"culture":     &graphql.Field{Type: graphql.NewList(cultureType)},
			"created_at":  &graphql.Field{Type: graphql.DateTime},
		},
	})

	tourStepType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TourStep",
		Fields: graphql.Fields{
			"index":    &graphql.Field{Type: graphql.Int},
			"position": &graphql.Field{Type: coordinateType},
			"bearing":  &graphql.Field{Type: graphql.Float},
			"compass":  &graphql.Field{Type: graphql.String},
			"map_url":  &graphql.Field{Type: graphql.String},
		},
	})

	tourType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Tour",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"city_id":          &graphql.Field{Type: graphql.String},
			"from_landmark":    &graphql.Field{Type: graphql.String},
			"to_landmark":      &graphql.Field{Type: graphql.String},
			"from":             &graphql.Field{Type: coordinateType},
			"to":               &graphql.Field{Type: coordinateType},
			"polyline":         &graphql.Field{Type: graphql.String},
			"path":             &graphql.Field{Type: graphql.NewList(coordinateType)},
			"steps":            &graphql.Field{Type: graphql.NewList(tourStepType)},
			"distance_meters":  &graphql.Field{Type: graphql.Float},
			"duration_seconds": &graphql.Field{Type: graphql.Float},
			"created_at":       &graphql.Field{Type: graphql.DateTime},
		},
	})

	bearingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bearing",
		Fields: graphql.Fields{
			"bearing": &graphql.Field{Type: graphql.Float},
			"compass": &graphql.Field{Type: graphql.String},
		},
	})

	pointArg := &graphql.ArgumentConfig{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.Float))),
		Description: "[lon, lat]",
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"cities": &graphql.Field{
				Type:        graphql.NewList(cityType),
				Description: "List all cities in the catalog",
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return deps.Cities.List(p.Context)
				},
			},
			"city": &graphql.Field{
				Type:        cityType,
				Description: "Get a city by name (case-insensitive)",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return deps.Cities.GetByName(p.Context, p.Args["name"].(string))
				},
			},
			"tour": &graphql.Field{
				Type:        tourType,
				Description: "Get a planned tour by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return deps.Tours.Get(p.Context, p.Args["id"].(string))
				},
			},
			"bearing": &graphql.Field{
				Type:        bearingType,
				Description: "Initial bearing from one point to another",
				Args: graphql.FieldConfigArgument{
					"from": pointArg,
					"to":   pointArg,
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					from, err := coordinateArg(p.Args["from"])
					if err != nil {
						return nil, fmt.Errorf("from: %w", err)
					}
					to, err := coordinateArg(p.Args["to"])
					if err != nil {
						return nil, fmt.Errorf("to: %w", err)
					}
					b := geospatial.Bearing(from, to)
					return map[string]any{"bearing": b, "compass": geospatial.Compass(b)}, nil
				},
			},
			"encodePath": &graphql.Field{
				Type:        graphql.String,
				Description: "Encode a path of [lon, lat] points as a precision-5 polyline",
				Args: graphql.FieldConfigArgument{
					"points": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(
							graphql.NewList(graphql.NewNonNull(graphql.Float))))),
					},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					raw, _ := p.Args["points"].([]any)
					points := make([]geospatial.Coordinate, 0, len(raw))
					for i, r := range raw {
						c, err := coordinateArg(r)
						if err != nil {
							return nil, fmt.Errorf("points[%d]: %w", i, err)
						}
						points = append(points, c)
					}
					return geospatial.EncodePath(points), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"planTour": &graphql.Field{
				Type:        tourType,
				Description: "Plan a walking tour between two landmarks of a city",
				Args: graphql.FieldConfigArgument{
					"city":          &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"from_landmark": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"to_landmark":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return deps.Tours.PlanInCity(p.Context,
						p.Args["city"].(string),
						p.Args["from_landmark"].(string),
						p.Args["to_landmark"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// coordinateArg converts a [lon, lat] list argument into a validated coordinate.
func coordinateArg(v any) (geospatial.Coordinate, error) {
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 {
		return geospatial.Coordinate{}, errors.New("expected [lon, lat]")
	}
	lon, ok1 := pair[0].(float64)
	lat, ok2 := pair[1].(float64)
	if !ok1 || !ok2 {
		return geospatial.Coordinate{}, errors.New("expected numeric [lon, lat]")
	}
	c := geospatial.Coordinate{Lon: lon, Lat: lat}
	if err := validateStruct(c); err != nil {
		return geospatial.Coordinate{}, err
	}
	return c, nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
