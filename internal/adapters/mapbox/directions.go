package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/valyala/fasthttp"

	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/core/ports"
	"github.com/odysseyatlas/atlas/internal/pkg/config"
	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
	"github.com/odysseyatlas/atlas/internal/pkg/metrics"
)

// ErrNoRoute is returned when the provider finds no walking route between the
// requested points.
var ErrNoRoute = fmt.Errorf("no walking route: %w", domain.ErrInvalidTour)

const breakerName = "mapbox-directions"

// Directions implements ports.DirectionsProvider against the Mapbox
// Directions API. Responses are cached and calls go through a circuit breaker.
type Directions struct {
	client   *fasthttp.Client
	cb       *gobreaker.CircuitBreaker[*domain.WalkingRoute]
	cache    ports.CacheService
	baseURL  string
	token    string
	profile  string
	timeout  time.Duration
	cacheTTL time.Duration
}

// NewDirections creates a directions client. cache may be nil.
func NewDirections(cfg config.MapboxConfig, cache ports.CacheService) *Directions {
	d := &Directions{
		client: &fasthttp.Client{
			Name:                "odyssey-atlas",
			MaxConnsPerHost:     32,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		cache:    cache,
		baseURL:  cfg.BaseURL,
		token:    cfg.AccessToken,
		profile:  cfg.Profile,
		timeout:  cfg.Timeout,
		cacheTTL: cfg.CacheTTL,
	}

	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}
	metrics.BreakerState.WithLabelValues(breakerName).Set(0)
	d.cb = gobreaker.NewCircuitBreaker[*domain.WalkingRoute](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A route that does not exist is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrInvalidTour)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return d
}

// WalkingRoute returns the first walking route between from and to.
func (d *Directions) WalkingRoute(ctx context.Context, from, to geospatial.Coordinate) (*domain.WalkingRoute, error) {
	key := d.cacheKey(from, to)
	if d.cache != nil {
		if data, err := d.cache.Get(ctx, key); err == nil {
			var route domain.WalkingRoute
			if err := json.Unmarshal(data, &route); err == nil {
				metrics.CacheHits.WithLabelValues("directions").Inc()
				return &route, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("directions").Inc()
	}

	start := time.Now()
	route, err := d.cb.Execute(func() (*domain.WalkingRoute, error) {
		return d.fetch(ctx, from, to)
	})
	metrics.DirectionsDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.DirectionsRequests.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("directions: %w: %w", domain.ErrUnavailable, err)
	case errors.Is(err, domain.ErrInvalidTour):
		metrics.DirectionsRequests.WithLabelValues("no_route").Inc()
		return nil, err
	case err != nil:
		metrics.DirectionsRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.DirectionsRequests.WithLabelValues("ok").Inc()

	if d.cache != nil && d.cacheTTL > 0 {
		if data, err := json.Marshal(route); err == nil {
			_ = d.cache.Set(ctx, key, data, int(d.cacheTTL.Seconds()))
		}
	}
	return route, nil
}

func (d *Directions) fetch(ctx context.Context, from, to geospatial.Coordinate) (*domain.WalkingRoute, error) {
	timeout := d.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, ctx.Err()
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(d.requestURL(from, to))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if err := d.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("directions request: %w", err)
	}

	status := resp.StatusCode()
	var body directionsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		if status != fasthttp.StatusOK {
			return nil, fmt.Errorf("directions: HTTP %d", status)
		}
		return nil, fmt.Errorf("decode directions: %w", err)
	}

	switch {
	case status == fasthttp.StatusOK && body.Code == "Ok" && len(body.Routes) > 0:
	case body.Code == "NoRoute" || body.Code == "NoSegment" || (status == fasthttp.StatusOK && len(body.Routes) == 0):
		return nil, ErrNoRoute
	case status == fasthttp.StatusUnprocessableEntity:
		return nil, fmt.Errorf("directions rejected input: %s: %w", body.Message, domain.ErrInvalidTour)
	default:
		return nil, fmt.Errorf("directions: HTTP %d %s %s", status, body.Code, body.Message)
	}

	r := body.Routes[0]
	return &domain.WalkingRoute{
		Path:            r.Geometry.Coordinates,
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
	}, nil
}

func (d *Directions) requestURL(from, to geospatial.Coordinate) string {
	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	q.Set("access_token", d.token)
	return fmt.Sprintf("%s/directions/v5/mapbox/%s/%s;%s?%s",
		d.baseURL, d.profile, lonLat(from), lonLat(to), q.Encode())
}

func (d *Directions) cacheKey(from, to geospatial.Coordinate) string {
	return fmt.Sprintf("directions:%s:%.5f,%.5f;%.5f,%.5f", d.profile, from.Lon, from.Lat, to.Lon, to.Lat)
}

func lonLat(c geospatial.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lon, c.Lat)
}

type directionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates []geospatial.Coordinate `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}
