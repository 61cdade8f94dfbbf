package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/odysseyatlas/atlas/internal/core/usecases"
)

// Pinger is a backend that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Cities *usecases.CityService
	Tours  *usecases.TourService
	Walks  *usecases.WalkService
	NATS   *nats.Conn
	DB     Pinger
	Cache  Pinger

	RequestTimeout time.Duration // per-request timeout on /v1 and /api routes
	RateLimit      int           // requests per minute per IP
	Version        string
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout > 0 {
		return d.RequestTimeout
	}
	return 15 * time.Second
}

func (d *Dependencies) rateLimit() int {
	if d.RateLimit > 0 {
		return d.RateLimit
	}
	return 120
}
