package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on successful GET responses
// unless the handler already set one.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() >= 400 {
			return err
		}
		if c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/v1/geometry/"):
			ttl = "public, max-age=86400" // pure functions of the query

		case strings.HasSuffix(path, "/tours") && strings.HasPrefix(path, "/v1/cities/"):
			ttl = "public, max-age=30" // grows as tours are planned

		case strings.HasPrefix(path, "/v1/cities") || strings.HasPrefix(path, "/api/cities"):
			ttl = "public, max-age=600"

		case strings.HasPrefix(path, "/v1/tours/"):
			ttl = "public, max-age=3600" // tours are immutable once planned

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
