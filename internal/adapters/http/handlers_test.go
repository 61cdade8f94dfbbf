package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/odysseyatlas/atlas/internal/adapters/http"
	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/core/ports"
	"github.com/odysseyatlas/atlas/internal/core/usecases"
	"github.com/odysseyatlas/atlas/internal/pkg/geospatial"
)

// ---- Mocks ----

type mockCityRepo struct {
	listFn      func(ctx context.Context) ([]domain.City, error)
	getByNameFn func(ctx context.Context, name string) (*domain.City, error)
}

func (m *mockCityRepo) Upsert(ctx context.Context, c *domain.City) error { return nil }
func (m *mockCityRepo) List(ctx context.Context) ([]domain.City, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockCityRepo) GetByName(ctx context.Context, name string) (*domain.City, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(ctx, name)
	}
	return nil, domain.ErrNotFound
}

// memTourRepo keeps tours the way the database does: polyline only.
type memTourRepo struct {
	mu    sync.Mutex
	tours map[string]domain.Tour
	order []string
}

func newMemTourRepo() *memTourRepo { return &memTourRepo{tours: map[string]domain.Tour{}} }

func (m *memTourRepo) Create(ctx context.Context, t *domain.Tour) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *t
	stored.Path, stored.Steps = nil, nil
	m.tours[t.ID] = stored
	m.order = append(m.order, t.ID)
	return nil
}

func (m *memTourRepo) GetByID(ctx context.Context, id string) (*domain.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tours[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *memTourRepo) ListByCity(ctx context.Context, cityID string, limit int) ([]domain.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Tour
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		if t := m.tours[m.order[i]]; t.CityID == cityID {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockDirections struct {
	routeFn func(ctx context.Context, from, to geospatial.Coordinate) (*domain.WalkingRoute, error)
}

func (m *mockDirections) WalkingRoute(ctx context.Context, from, to geospatial.Coordinate) (*domain.WalkingRoute, error) {
	if m.routeFn != nil {
		return m.routeFn(ctx, from, to)
	}
	mid := geospatial.Coordinate{Lon: (from.Lon + to.Lon) / 2, Lat: (from.Lat + to.Lat) / 2}
	return &domain.WalkingRoute{
		Path:            []geospatial.Coordinate{from, mid, to},
		DistanceMeters:  geospatial.Distance(from, to),
		DurationSeconds: geospatial.Distance(from, to) / 1.4,
	}, nil
}

type mockScheduler struct {
	reqs []domain.WalkRequest
}

func (m *mockScheduler) StartWalk(ctx context.Context, req domain.WalkRequest) (string, string, error) {
	m.reqs = append(m.reqs, req)
	return "walk-" + req.TourID, "run-1", nil
}

// ---- Test helpers ----

func paris() *domain.City {
	return &domain.City{
		ID:          "c0a80101-0000-0000-0000-000000000001",
		Name:        "Paris",
		Coordinates: geospatial.Coordinate{Lon: 2.3522, Lat: 48.8566},
		Landmarks: []domain.Landmark{
			{Name: "Eiffel Tower", Coordinates: geospatial.Coordinate{Lon: 2.2945, Lat: 48.8584}, Facts: []string{"Built in 1889"}},
			{Name: "Louvre Museum", Coordinates: geospatial.Coordinate{Lon: 2.3376, Lat: 48.8606}},
		},
		Culture: []domain.CultureItem{{Name: "Cafe culture", Info: "Terraces everywhere"}},
	}
}

type fixture struct {
	cities     *mockCityRepo
	tours      *memTourRepo
	directions *mockDirections
	scheduler  ports.WalkScheduler
}

func newFixture() *fixture {
	return &fixture{
		cities: &mockCityRepo{
			getByNameFn: func(ctx context.Context, name string) (*domain.City, error) {
				if strings.EqualFold(name, "paris") {
					return paris(), nil
				}
				return nil, domain.ErrNotFound
			},
			listFn: func(ctx context.Context) ([]domain.City, error) {
				return []domain.City{*paris()}, nil
			},
		},
		tours:      newMemTourRepo(),
		directions: &mockDirections{},
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*fixture)) *handler.Dependencies {
	f := newFixture()
	for _, o := range opts {
		o(f)
	}
	cities := usecases.NewCityService(f.cities, nil)
	tours := usecases.NewTourService(f.tours, cities, f.directions, nil, nil)
	return &handler.Dependencies{
		Cities:    cities,
		Tours:     tours,
		Walks:     usecases.NewWalkService(tours, f.scheduler, 25, time.Second),
		RateLimit: 10000,
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *httpResponse {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return &httpResponse{Status: resp.StatusCode, Header: resp.Header, Body: readBody(t, resp.Body)}
}

type httpResponse struct {
	Status int
	Header map[string][]string
	Body   []byte
}

func (r *httpResponse) header(key string) string {
	if v := r.Header[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func expectError(t *testing.T, r *httpResponse, status int, code string) {
	t.Helper()
	if r.Status != status {
		t.Fatalf("expected %d, got %d: %s", status, r.Status, r.Body)
	}
	var apiErr handler.APIError
	if err := json.Unmarshal(r.Body, &apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("expected %s error, got %s (%s)", code, apiErr.Code, apiErr.Message)
	}
}

func planParisTour(t *testing.T, app *fiber.App) domain.Tour {
	t.Helper()
	r := doJSON(t, app, "POST", "/v1/tours", map[string]string{
		"city": "paris", "from_landmark": "Eiffel Tower", "to_landmark": "louvre museum",
	})
	if r.Status != 201 {
		t.Fatalf("plan: expected 201, got %d: %s", r.Status, r.Body)
	}
	var tour domain.Tour
	if err := json.Unmarshal(r.Body, &tour); err != nil {
		t.Fatal(err)
	}
	return tour
}

// ---- City handler tests ----

func TestListCities_Success(t *testing.T) {
	app := setupApp(makeDeps())

	r := doJSON(t, app, "GET", "/v1/cities", nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d", r.Status)
	}

	var result struct {
		Data       []domain.City      `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(r.Body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 1 || len(result.Data) != 1 {
		t.Fatalf("expected 1 city, got total=%d len=%d", result.Pagination.Total, len(result.Data))
	}
	if result.Data[0].Name != "Paris" {
		t.Errorf("expected Paris, got %s", result.Data[0].Name)
	}
	if !strings.Contains(r.header("Link"), `rel="first"`) {
		t.Errorf("expected Link header, got %q", r.header("Link"))
	}
}

func TestListCities_Pagination(t *testing.T) {
	deps := makeDeps(func(f *fixture) {
		f.cities.listFn = func(ctx context.Context) ([]domain.City, error) {
			cities := make([]domain.City, 5)
			for i := range cities {
				cities[i] = domain.City{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("City %d", i)}
			}
			return cities, nil
		}
	})
	app := setupApp(deps)

	r := doJSON(t, app, "GET", "/v1/cities?offset=4&limit=2", nil)
	var result struct {
		Data       []domain.City      `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(r.Body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Data) != 1 {
		t.Errorf("expected 1 city on last page, got %d", len(result.Data))
	}
	if result.Pagination.Offset != 4 || result.Pagination.Total != 5 {
		t.Errorf("unexpected pagination %+v", result.Pagination)
	}
	if !strings.Contains(r.header("Link"), `rel="prev"`) {
		t.Errorf("expected prev link, got %q", r.header("Link"))
	}
}

func TestGetCity_CaseInsensitive(t *testing.T) {
	app := setupApp(makeDeps())

	r := doJSON(t, app, "GET", "/v1/cities/PARIS", nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d", r.Status)
	}
	var city domain.City
	if err := json.Unmarshal(r.Body, &city); err != nil {
		t.Fatal(err)
	}
	if len(city.Landmarks) != 2 || len(city.Culture) != 1 {
		t.Errorf("expected landmarks and culture, got %+v", city)
	}
	if city.Landmarks[0].Coordinates.Lon != 2.2945 {
		t.Errorf("coordinates lost in transit: %+v", city.Landmarks[0].Coordinates)
	}
}

func TestGetCity_EscapedName(t *testing.T) {
	var got string
	deps := makeDeps(func(f *fixture) {
		f.cities.getByNameFn = func(ctx context.Context, name string) (*domain.City, error) {
			got = name
			return &domain.City{Name: name}, nil
		}
	})
	app := setupApp(deps)

	r := doJSON(t, app, "GET", "/v1/cities/New%20York", nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d", r.Status)
	}
	if got != "New York" {
		t.Errorf("expected unescaped name, got %q", got)
	}
}

func TestGetCity_NotFound(t *testing.T) {
	app := setupApp(makeDeps())
	expectError(t, doJSON(t, app, "GET", "/v1/cities/atlantis", nil), 404, "not_found")
}

func TestGetCity_RepositoryFailure(t *testing.T) {
	deps := makeDeps(func(f *fixture) {
		f.cities.getByNameFn = func(ctx context.Context, name string) (*domain.City, error) {
			return nil, errors.New("connection refused")
		}
	})
	app := setupApp(deps)

	r := doJSON(t, app, "GET", "/v1/cities/paris", nil)
	expectError(t, r, 500, "internal_error")
	if strings.Contains(string(r.Body), "connection refused") {
		t.Error("internal error details must not leak to clients")
	}
}

func TestCityLandmarks(t *testing.T) {
	app := setupApp(makeDeps())

	r := doJSON(t, app, "GET", "/v1/cities/paris/landmarks", nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d", r.Status)
	}
	var landmarks []domain.Landmark
	if err := json.Unmarshal(r.Body, &landmarks); err != nil {
		t.Fatal(err)
	}
	if len(landmarks) != 2 || landmarks[0].Name != "Eiffel Tower" {
		t.Errorf("unexpected landmarks %+v", landmarks)
	}
}

func TestLegacyCityRoute_Deprecated(t *testing.T) {
	app := setupApp(makeDeps())

	r := doJSON(t, app, "GET", "/api/cities/paris", nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d", r.Status)
	}
	if r.header("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	sunset, err := http.ParseTime(r.header("Sunset"))
	if err != nil {
		t.Fatalf("Sunset header %q is not an HTTP date: %v", r.header("Sunset"), err)
	}
	if sunset.Year() != 2027 {
		t.Errorf("unexpected sunset %v", sunset)
	}
	if link := r.header("Link"); link != `</v1/cities/paris>; rel="successor-version"` {
		t.Errorf("unexpected Link header %q", link)
	}
}

// ---- Tour handler tests ----

func TestPlanTour_Coordinates(t *testing.T) {
	app := setupApp(makeDeps())

	r := doJSON(t, app, "POST", "/v1/tours", map[string]any{
		"from": []float64{2.2945, 48.8584},
		"to":   map[string]float64{"lon": 2.3376, "lat": 48.8606},
	})
	if r.Status != 201 {
		t.Fatalf("expected 201, got %d: %s", r.Status, r.Body)
	}

	var tour domain.Tour
	if err := json.Unmarshal(r.Body, &tour); err != nil {
		t.Fatal(err)
	}
	if tour.ID == "" || tour.Polyline == "" {
		t.Fatalf("expected id and polyline, got %+v", tour)
	}
	if len(tour.Steps) != 3 {
		t.Errorf("expected 3 steps, got %d", len(tour.Steps))
	}
	if loc := r.header("Location"); loc != "/v1/tours/"+tour.ID {
		t.Errorf("unexpected Location %q", loc)
	}
}

func TestPlanTour_Landmarks(t *testing.T) {
	app := setupApp(makeDeps())
	tour := planParisTour(t, app)

	if tour.FromLandmark != "Eiffel Tower" || tour.ToLandmark != "Louvre Museum" {
		t.Errorf("landmark names not canonicalised: %q -> %q", tour.FromLandmark, tour.ToLandmark)
	}
	if tour.CityID != paris().ID {
		t.Errorf("expected city id, got %q", tour.CityID)
	}
	// Eastward walk
	if tour.Steps[0].Compass != "E" {
		t.Errorf("expected first step to face E, got %s (%.1f)", tour.Steps[0].Compass, tour.Steps[0].Bearing)
	}
}

func TestPlanTour_InvalidLatitude(t *testing.T) {
	app := setupApp(makeDeps())
	r := doJSON(t, app, "POST", "/v1/tours", map[string]any{
		"from": []float64{2.29, 91},
		"to":   []float64{2.33, 48.86},
	})
	expectError(t, r, 400, "bad_request")
	if !strings.Contains(string(r.Body), "latitude") {
		t.Errorf("expected latitude in message, got %s", r.Body)
	}
}

func TestPlanTour_MissingEndpoints(t *testing.T) {
	app := setupApp(makeDeps())
	expectError(t, doJSON(t, app, "POST", "/v1/tours", map[string]any{
		"from": []float64{2.29, 48.85},
	}), 400, "bad_request")
}

func TestPlanTour_CityWithoutLandmarks(t *testing.T) {
	app := setupApp(makeDeps())
	expectError(t, doJSON(t, app, "POST", "/v1/tours", map[string]any{
		"city": "paris",
	}), 400, "bad_request")
}

func TestPlanTour_MalformedBody(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/tours", strings.NewReader(`{"from": [1]`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	expectError(t, &httpResponse{Status: resp.StatusCode, Body: readBody(t, resp.Body)}, 400, "bad_request")
}

func TestPlanTour_UnknownLandmark(t *testing.T) {
	app := setupApp(makeDeps())
	expectError(t, doJSON(t, app, "POST", "/v1/tours", map[string]string{
		"city": "paris", "from_landmark": "Eiffel Tower", "to_landmark": "Big Ben",
	}), 404, "not_found")
}

func TestPlanTour_SameLandmark(t *testing.T) {
	app := setupApp(makeDeps())
	expectError(t, doJSON(t, app, "POST", "/v1/tours", map[string]string{
		"city": "paris", "from_landmark": "Louvre Museum", "to_landmark": "louvre museum",
	}), 400, "bad_request")
}

func TestPlanTour_DirectionsUnavailable(t *testing.T) {
	deps := makeDeps(func(f *fixture) {
		f.directions.routeFn = func(ctx context.Context, from, to geospatial.Coordinate) (*domain.WalkingRoute, error) {
			return nil, fmt.Errorf("circuit open: %w", domain.ErrUnavailable)
		}
	})
	app := setupApp(deps)

	expectError(t, doJSON(t, app, "POST", "/v1/tours", map[string]any{
		"from": []float64{2.29, 48.85}, "to": []float64{2.33, 48.86},
	}), 503, "unavailable")
}

func TestPlanTour_NoRoute(t *testing.T) {
	deps := makeDeps(func(f *fixture) {
		f.directions.routeFn = func(ctx context.Context, from, to geospatial.Coordinate) (*domain.WalkingRoute, error) {
			return nil, fmt.Errorf("no walking route: %w", domain.ErrInvalidTour)
		}
	})
	app := setupApp(deps)

	expectError(t, doJSON(t, app, "POST", "/v1/tours", map[string]any{
		"from": []float64{2.29, 48.85}, "to": []float64{-73.98, 40.75},
	}), 400, "bad_request")
}

func TestPlanTour_InvalidProviderPath(t *testing.T) {
	for name, path := range map[string][]geospatial.Coordinate{
		"empty":        nil,
		"out of range": {{Lon: 2.2945, Lat: 48.8584}, {Lon: 2.3, Lat: 91}},
	} {
		t.Run(name, func(t *testing.T) {
			deps := makeDeps(func(f *fixture) {
				f.directions.routeFn = func(ctx context.Context, from, to geospatial.Coordinate) (*domain.WalkingRoute, error) {
					return &domain.WalkingRoute{Path: path}, nil
				}
			})
			app := setupApp(deps)

			expectError(t, doJSON(t, app, "POST", "/v1/tours", map[string]any{
				"from": []float64{2.2945, 48.8584}, "to": []float64{2.3376, 48.8606},
			}), 503, "unavailable")
		})
	}
}

func TestGetTour_RoundTrip(t *testing.T) {
	app := setupApp(makeDeps())
	planned := planParisTour(t, app)

	r := doJSON(t, app, "GET", "/v1/tours/"+planned.ID, nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d", r.Status)
	}
	var got domain.Tour
	if err := json.Unmarshal(r.Body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Path) != len(planned.Path) || len(got.Steps) != len(planned.Steps) {
		t.Fatalf("expected hydrated path and steps, got %d/%d", len(got.Path), len(got.Steps))
	}
	if r.header("Cache-Control") != "public, max-age=3600" {
		t.Errorf("unexpected Cache-Control %q", r.header("Cache-Control"))
	}
}

func TestGetTour_NotFound(t *testing.T) {
	app := setupApp(makeDeps())
	expectError(t, doJSON(t, app, "GET", "/v1/tours/not-a-uuid", nil), 404, "not_found")
	expectError(t, doJSON(t, app, "GET", "/v1/tours/6f1c2b7e-0000-4000-8000-000000000000", nil), 404, "not_found")
}

func TestCityTours(t *testing.T) {
	app := setupApp(makeDeps())
	planned := planParisTour(t, app)

	r := doJSON(t, app, "GET", "/v1/cities/paris/tours", nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d", r.Status)
	}
	var tours []domain.Tour
	if err := json.Unmarshal(r.Body, &tours); err != nil {
		t.Fatal(err)
	}
	if len(tours) != 1 || tours[0].ID != planned.ID {
		t.Errorf("expected the planned tour, got %+v", tours)
	}
}

// ---- Walk handler tests ----

func TestWalkPreview(t *testing.T) {
	app := setupApp(makeDeps())
	tour := planParisTour(t, app)

	r := doJSON(t, app, "GET", "/v1/tours/"+tour.ID+"/walk?stride=500", nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", r.Status, r.Body)
	}
	var preview handler.WalkPreview
	if err := json.Unmarshal(r.Body, &preview); err != nil {
		t.Fatal(err)
	}
	if preview.StrideMeters != 500 {
		t.Errorf("expected stride 500, got %v", preview.StrideMeters)
	}
	// ~3.2km at 500m strides
	if n := len(preview.Steps); n < 7 || n > 9 {
		t.Fatalf("unexpected step count %d", n)
	}
	last := preview.Steps[len(preview.Steps)-1]
	if last.Progress != 1 {
		t.Errorf("expected final progress 1, got %v", last.Progress)
	}
	if last.Position != tour.To {
		t.Errorf("expected walk to end at %v, got %v", tour.To, last.Position)
	}
}

func TestWalkPreview_DefaultStride(t *testing.T) {
	app := setupApp(makeDeps())
	tour := planParisTour(t, app)

	r := doJSON(t, app, "GET", "/v1/tours/"+tour.ID+"/walk", nil)
	var preview handler.WalkPreview
	if err := json.Unmarshal(r.Body, &preview); err != nil {
		t.Fatal(err)
	}
	if preview.StrideMeters != 25 {
		t.Errorf("expected default stride 25, got %v", preview.StrideMeters)
	}
}

func TestWalkPreview_StrideOutOfRange(t *testing.T) {
	app := setupApp(makeDeps())
	tour := planParisTour(t, app)
	expectError(t, doJSON(t, app, "GET", "/v1/tours/"+tour.ID+"/walk?stride=5000", nil), 400, "bad_request")
}

func TestWalkPreview_NegativeStride(t *testing.T) {
	app := setupApp(makeDeps())
	tour := planParisTour(t, app)
	expectError(t, doJSON(t, app, "GET", "/v1/tours/"+tour.ID+"/walk?stride=-25", nil), 400, "bad_request")
}

func TestStartWalk_NoScheduler(t *testing.T) {
	app := setupApp(makeDeps())
	tour := planParisTour(t, app)
	expectError(t, doJSON(t, app, "POST", "/v1/tours/"+tour.ID+"/walk", nil), 503, "unavailable")
}

func TestStartWalk_Accepted(t *testing.T) {
	sched := &mockScheduler{}
	app := setupApp(makeDeps(func(f *fixture) { f.scheduler = sched }))
	tour := planParisTour(t, app)

	r := doJSON(t, app, "POST", "/v1/tours/"+tour.ID+"/walk", map[string]any{
		"stride_meters": 100, "interval_ms": 250,
	})
	if r.Status != 202 {
		t.Fatalf("expected 202, got %d: %s", r.Status, r.Body)
	}
	var walk handler.WalkResponse
	if err := json.Unmarshal(r.Body, &walk); err != nil {
		t.Fatal(err)
	}
	if walk.WorkflowID != "walk-"+tour.ID || walk.IntervalMS != 250 {
		t.Errorf("unexpected walk %+v", walk)
	}
	if walk.StepSubject != "atlas.walk."+tour.ID+".step" {
		t.Errorf("unexpected step subject %q", walk.StepSubject)
	}
	if len(sched.reqs) != 1 || sched.reqs[0].StrideMeters != 100 {
		t.Errorf("unexpected scheduler requests %+v", sched.reqs)
	}
}

func TestStartWalk_NegativeInterval(t *testing.T) {
	app := setupApp(makeDeps(func(f *fixture) { f.scheduler = &mockScheduler{} }))
	tour := planParisTour(t, app)
	expectError(t, doJSON(t, app, "POST", "/v1/tours/"+tour.ID+"/walk", map[string]any{
		"interval_ms": -5,
	}), 400, "bad_request")
}

// ---- Geometry handler tests ----

func TestBearing(t *testing.T) {
	app := setupApp(makeDeps())

	r := doJSON(t, app, "GET", "/v1/geometry/bearing?from=0,0&to=1,0", nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", r.Status, r.Body)
	}
	var b handler.BearingResponse
	if err := json.Unmarshal(r.Body, &b); err != nil {
		t.Fatal(err)
	}
	if b.Bearing != 90 || b.Compass != "E" {
		t.Errorf("expected 90 E, got %v %s", b.Bearing, b.Compass)
	}
	if b.DistanceMeters < 111000 || b.DistanceMeters > 111400 {
		t.Errorf("unexpected distance %v", b.DistanceMeters)
	}
}

func TestBearing_JustWestOfNorth(t *testing.T) {
	app := setupApp(makeDeps())

	r := doJSON(t, app, "GET", "/v1/geometry/bearing?from=0,0&to=-0.00001,1", nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", r.Status, r.Body)
	}
	var b handler.BearingResponse
	if err := json.Unmarshal(r.Body, &b); err != nil {
		t.Fatal(err)
	}
	if b.Bearing < 0 || b.Bearing >= 360 {
		t.Errorf("bearing %v outside [0, 360)", b.Bearing)
	}
	if b.Bearing != 0 || b.Compass != "N" {
		t.Errorf("expected 0 N, got %v %s", b.Bearing, b.Compass)
	}
}

func TestBearing_InvalidInput(t *testing.T) {
	app := setupApp(makeDeps())
	for _, q := range []string{
		"from=0,0",
		"from=0&to=1,0",
		"from=abc,0&to=1,0",
		"from=0,0&to=181,0",
	} {
		t.Run(q, func(t *testing.T) {
			expectError(t, doJSON(t, app, "GET", "/v1/geometry/bearing?"+q, nil), 400, "bad_request")
		})
	}
}

func TestPolyline_EncodeDecode(t *testing.T) {
	app := setupApp(makeDeps())
	const want = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

	r := doJSON(t, app, "POST", "/v1/geometry/polyline", map[string]any{
		"points": [][]float64{{-120.2, 38.5}, {-120.95, 40.7}, {-126.453, 43.252}},
	})
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", r.Status, r.Body)
	}
	var enc handler.PolylineResponse
	if err := json.Unmarshal(r.Body, &enc); err != nil {
		t.Fatal(err)
	}
	if enc.Polyline != want {
		t.Fatalf("expected %s, got %s", want, enc.Polyline)
	}

	r = doJSON(t, app, "GET", "/v1/geometry/polyline?encoded="+strings.ReplaceAll(want, "|", "%7C"), nil)
	var dec handler.PolylineResponse
	if err := json.Unmarshal(r.Body, &dec); err != nil {
		t.Fatal(err)
	}
	if len(dec.Points) != 3 || dec.Points[2] != (geospatial.Coordinate{Lon: -126.453, Lat: 43.252}) {
		t.Errorf("unexpected decoded points %+v", dec.Points)
	}
}

func TestPolyline_Invalid(t *testing.T) {
	app := setupApp(makeDeps())
	expectError(t, doJSON(t, app, "POST", "/v1/geometry/polyline", map[string]any{"points": [][]float64{}}), 400, "bad_request")
	expectError(t, doJSON(t, app, "POST", "/v1/geometry/polyline", map[string]any{
		"points": [][]float64{{0, 0}, {200, 0}},
	}), 400, "bad_request")
	expectError(t, doJSON(t, app, "GET", "/v1/geometry/polyline", nil), 400, "bad_request")
	expectError(t, doJSON(t, app, "GET", "/v1/geometry/polyline?encoded=_p~iF~ps", nil), 400, "bad_request")
}

// ---- GraphQL tests ----

func TestGraphQL_City(t *testing.T) {
	app := setupApp(makeDeps())

	r := doJSON(t, app, "POST", "/graphql", map[string]any{
		"query": `{ city(name: "paris") { name landmarks { name coordinates { lon lat } } } }`,
	})
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d", r.Status)
	}
	var result struct {
		Data struct {
			City struct {
				Name      string `json:"name"`
				Landmarks []struct {
					Name        string `json:"name"`
					Coordinates struct {
						Lon float64 `json:"lon"`
						Lat float64 `json:"lat"`
					} `json:"coordinates"`
				} `json:"landmarks"`
			} `json:"city"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.Unmarshal(r.Body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if result.Data.City.Name != "Paris" || len(result.Data.City.Landmarks) != 2 {
		t.Fatalf("unexpected city %+v", result.Data.City)
	}
	if result.Data.City.Landmarks[1].Coordinates.Lat != 48.8606 {
		t.Errorf("unexpected coordinates %+v", result.Data.City.Landmarks[1].Coordinates)
	}
}

func TestGraphQL_Bearing(t *testing.T) {
	app := setupApp(makeDeps())

	r := doJSON(t, app, "POST", "/graphql", map[string]any{
		"query": `{ bearing(from: [0, 0], to: [0, 1]) { bearing compass } encodePath(points: [[-120.2, 38.5]]) }`,
	})
	var result struct {
		Data struct {
			Bearing struct {
				Bearing float64 `json:"bearing"`
				Compass string  `json:"compass"`
			} `json:"bearing"`
			EncodePath string `json:"encodePath"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.Unmarshal(r.Body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if result.Data.Bearing.Bearing != 0 || result.Data.Bearing.Compass != "N" {
		t.Errorf("expected due north, got %+v", result.Data.Bearing)
	}
	if result.Data.EncodePath != "_p~iF~ps|U" {
		t.Errorf("unexpected polyline %q", result.Data.EncodePath)
	}
}

func TestGraphQL_PlanTour(t *testing.T) {
	app := setupApp(makeDeps())

	r := doJSON(t, app, "POST", "/graphql", map[string]any{
		"query": `mutation { planTour(city: "Paris", from_landmark: "Louvre Museum", to_landmark: "Eiffel Tower") { id steps { compass } } }`,
	})
	var result struct {
		Data struct {
			PlanTour struct {
				ID    string `json:"id"`
				Steps []struct {
					Compass string `json:"compass"`
				} `json:"steps"`
			} `json:"planTour"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.Unmarshal(r.Body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if result.Data.PlanTour.ID == "" || result.Data.PlanTour.Steps[0].Compass != "W" {
		t.Errorf("unexpected tour %+v", result.Data.PlanTour)
	}
}

// ---- Middleware and system endpoint tests ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())
	r := doJSON(t, app, "GET", "/v1/health", nil)
	if r.Status != 200 {
		t.Fatalf("expected 200, got %d", r.Status)
	}
	if r.header("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

type pinger struct{ err error }

func (p pinger) Ping(ctx context.Context) error { return p.err }

func TestReady(t *testing.T) {
	deps := makeDeps()
	deps.DB = pinger{}
	deps.Cache = pinger{}
	app := setupApp(deps)
	if r := doJSON(t, app, "GET", "/v1/ready", nil); r.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", r.Status, r.Body)
	}

	deps = makeDeps()
	deps.DB = pinger{err: errors.New("down")}
	app = setupApp(deps)
	r := doJSON(t, app, "GET", "/v1/ready", nil)
	if r.Status != 503 {
		t.Fatalf("expected 503, got %d", r.Status)
	}
	if !strings.Contains(string(r.Body), "error: down") {
		t.Errorf("expected database check detail, got %s", r.Body)
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps())

	first := doJSON(t, app, "GET", "/v1/cities/paris", nil)
	etag := first.header("Etag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest("GET", "/v1/cities/paris", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	deps := makeDeps()
	deps.RateLimit = 2
	app := setupApp(deps)

	for i := 0; i < 2; i++ {
		if r := doJSON(t, app, "GET", "/v1/health", nil); r.Status != 200 {
			t.Fatalf("request %d: expected 200, got %d", i, r.Status)
		}
	}
	expectError(t, doJSON(t, app, "GET", "/v1/health", nil), 429, "rate_limited")
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := setupApp(makeDeps())
	r := doJSON(t, app, "GET", "/ws", nil)
	if r.Status != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", r.Status)
	}
}
