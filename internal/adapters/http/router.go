package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/odysseyatlas/atlas/internal/pkg/metrics"
)

// legacyCitySunset is when the pre-v1 city endpoint goes away.
var legacyCitySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	app.Use(limiter.New(limiter.Config{
		Max:        deps.rateLimit(),
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited",
				"too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness run without the request timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	t := deps.requestTimeout()

	v1 := app.Group("/v1")
	v1.Get("/cities", timeout.NewWithContext(ListCitiesHandler(deps), t))
	v1.Get("/cities/:name", timeout.NewWithContext(GetCityHandler(deps), t))
	v1.Get("/cities/:name/landmarks", timeout.NewWithContext(CityLandmarksHandler(deps), t))
	v1.Get("/cities/:name/tours", timeout.NewWithContext(CityToursHandler(deps), t))

	v1.Post("/tours", timeout.NewWithContext(PlanTourHandler(deps), t))
	v1.Get("/tours/:id", timeout.NewWithContext(GetTourHandler(deps), t))
	v1.Get("/tours/:id/walk", timeout.NewWithContext(WalkPreviewHandler(deps), t))
	v1.Post("/tours/:id/walk", timeout.NewWithContext(StartWalkHandler(deps), t))

	v1.Get("/geometry/bearing", BearingHandler())
	v1.Get("/geometry/polyline", DecodePolylineHandler())
	v1.Post("/geometry/polyline", EncodePolylineHandler())

	// Pre-v1 path kept for older frontends
	legacy := app.Group("/api", DeprecationMiddleware([]DeprecatedRoute{{
		Path:        "/api/cities/:name",
		SunsetDate:  legacyCitySunset,
		Alternative: "/v1/cities/:name",
	}}))
	legacy.Get("/cities/:name", timeout.NewWithContext(GetCityHandler(deps), t))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
