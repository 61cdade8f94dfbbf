package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys shared by the services.
const (
	AttrTourID     = attribute.Key("tour.id")
	AttrTourSource = attribute.Key("tour.source")
	AttrTourPoints = attribute.Key("tour.points")
	AttrFromLon    = attribute.Key("tour.from.lon")
	AttrFromLat    = attribute.Key("tour.from.lat")
	AttrToLon      = attribute.Key("tour.to.lon")
	AttrToLat      = attribute.Key("tour.to.lat")
	AttrWalkStride = attribute.Key("walk.stride_meters")
	AttrWalkSteps  = attribute.Key("walk.steps")
)
