package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"drone-route-planner/internal/api"
	"drone-route-planner/internal/cache"
	"drone-route-planner/internal/campus"
	"drone-route-planner/internal/grid/gridtest"
	"drone-route-planner/internal/pipeline"
	"drone-route-planner/internal/planner"
	"drone-route-planner/internal/route"
	"drone-route-planner/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const gapMap = `
..X..
..X..
.....
..X..
..X..`

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stateFor(t *testing.T, ascii string) *pipeline.State {
	t.Helper()
	m := gridtest.FromASCII(t, ascii)
	return &pipeline.State{
		Dataset: &campus.Dataset{
			Buildings: m.Hard,
			Sports:    []campus.Area{{Name: "东操", Ring: orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}},
		},
		Bounds:  m.Grid.Config().Bounds,
		Grid:    m.Grid,
		Planner: planner.New(m.Grid, planner.Options{Obstacles: m.Hard}),
		BuiltAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func routeBody(sx, sy, ex, ey float64) api.RouteRequest {
	return api.RouteRequest{Start: &api.Point{X: sx, Y: sy}, End: &api.Point{X: ex, Y: ey}}
}

func TestHealth(t *testing.T) {
	w := do(t, api.New(nil, api.Options{Logger: quiet()}).Router(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status without grid = %d, want 503", w.Code)
	}

	w = do(t, api.New(stateFor(t, gapMap), api.Options{Logger: quiet()}).Router(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["status"] != "ready" || body["generation"] != float64(1) || body["builtAt"] != "2024-05-01T08:00:00Z" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestRoute(t *testing.T) {
	h := api.New(stateFor(t, gapMap), api.Options{Logger: quiet()}).Router()

	w := do(t, h, http.MethodPost, "/route", routeBody(0, 0, 4, 4))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	resp := decode[api.RouteResponse](t, w)
	if !resp.Success || resp.Tier != route.TierStrict {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if first, last := resp.Path[0], resp.Path[len(resp.Path)-1]; first != (api.Point{X: 0, Y: 0}) || last != (api.Point{X: 4, Y: 4}) {
		t.Errorf("path runs %v -> %v", first, last)
	}
	if resp.DistanceMeters <= 0 {
		t.Errorf("distance = %v, want positive", resp.DistanceMeters)
	}
	if resp.Cached {
		t.Error("first response must not be cached")
	}
}

func TestRoute_Cache(t *testing.T) {
	mem := cache.NewMemory(10)
	h := api.New(stateFor(t, gapMap), api.Options{Cache: mem, CacheTTL: time.Minute, Logger: quiet()}).Router()

	first := decode[api.RouteResponse](t, do(t, h, http.MethodPost, "/route", routeBody(0, 0, 4, 4)))
	second := decode[api.RouteResponse](t, do(t, h, http.MethodPost, "/route", routeBody(0, 0, 4, 4)))

	if first.Cached || !second.Cached {
		t.Fatalf("cached flags = %v, %v; want false, true", first.Cached, second.Cached)
	}
	if len(first.Path) != len(second.Path) {
		t.Errorf("cached path has %d points, want %d", len(second.Path), len(first.Path))
	}
	if hits, misses, _, _ := mem.Stats(); hits != 1 || misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1 and 1", hits, misses)
	}
}

func TestRoute_BlockedEndpoint(t *testing.T) {
	h := api.New(stateFor(t, "XX\nXX"), api.Options{Logger: quiet()}).Router()

	w := do(t, h, http.MethodPost, "/route", routeBody(0, 0, 1, 1))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[api.RouteResponse](t, w)
	if resp.Success || resp.Message == "" || len(resp.Path) != 0 {
		t.Errorf("expected a refusal with a message, got %+v", resp)
	}
}

func TestRoute_BadRequests(t *testing.T) {
	h := api.New(stateFor(t, gapMap), api.Options{Logger: quiet()}).Router()

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing end", map[string]any{"start": map[string]float64{"x": 0, "y": 0}}, http.StatusBadRequest},
		{"wrong type", map[string]any{"start": "here"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, h, http.MethodPost, "/route", tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	noGrid := api.New(nil, api.Options{Logger: quiet()}).Router()
	if w := do(t, noGrid, http.MethodPost, "/route", routeBody(0, 0, 1, 1)); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status without grid = %d, want 503", w.Code)
	}
}

func TestGridStats(t *testing.T) {
	h := api.New(stateFor(t, gapMap), api.Options{Logger: quiet()}).Router()

	w := do(t, h, http.MethodGet, "/grid", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[struct {
		Grid struct {
			Width, Height, Cells int
		} `json:"grid"`
	}](t, w)
	if body.Grid.Width != 5 || body.Grid.Height != 5 || body.Grid.Cells != 25 {
		t.Errorf("grid = %+v, want 5x5", body.Grid)
	}
}

func TestRebuild(t *testing.T) {
	var got pipeline.Overrides
	builder := func(_ context.Context, ov pipeline.Overrides) (*pipeline.State, error) {
		got = ov
		return stateFor(t, "...\n..."), nil
	}
	srv := api.New(stateFor(t, gapMap), api.Options{Builder: builder, Logger: quiet()})
	h := srv.Router()

	w := do(t, h, http.MethodPost, "/grid/rebuild", map[string]float64{"cellSize": 0.5})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if got.CellSize == nil || *got.CellSize != 0.5 || got.Clearance != nil {
		t.Errorf("builder got %+v", got)
	}
	if st, gen := srv.State(); gen != 2 || st.Grid.Width() != 3 {
		t.Errorf("generation = %d width = %d, want 2 and 3", gen, st.Grid.Width())
	}

	// An explicit zero clearance reaches the builder instead of keeping the configured value.
	if w := do(t, h, http.MethodPost, "/grid/rebuild", map[string]float64{"clearance": 0}); w.Code != http.StatusOK {
		t.Fatalf("zero clearance status = %d: %s", w.Code, w.Body)
	}
	if got.Clearance == nil || *got.Clearance != 0 || got.CellSize != nil {
		t.Errorf("builder got %+v, want clearance 0 only", got)
	}

	for _, body := range []map[string]float64{{"clearance": -1}, {"cellSize": 0}, {"cellSize": -0.1}} {
		if w := do(t, h, http.MethodPost, "/grid/rebuild", body); w.Code != http.StatusBadRequest {
			t.Errorf("%v: status = %d, want 400", body, w.Code)
		}
	}

	failing := api.New(nil, api.Options{
		Builder: func(context.Context, pipeline.Overrides) (*pipeline.State, error) { return nil, errors.New("no data") },
		Logger:  quiet(),
	})
	if w := do(t, failing.Router(), http.MethodPost, "/grid/rebuild", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("failing build status = %d, want 500", w.Code)
	}
	if st, _ := failing.State(); st != nil {
		t.Error("a failed build must not replace the state")
	}

	if w := do(t, api.New(nil, api.Options{Logger: quiet()}).Router(), http.MethodPost, "/grid/rebuild", nil); w.Code != http.StatusNotImplemented {
		t.Errorf("status without builder = %d, want 501", w.Code)
	}
}

func TestObstacles(t *testing.T) {
	h := api.New(stateFor(t, gapMap), api.Options{Logger: quiet()}).Router()

	w := do(t, h, http.MethodGet, "/obstacles", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")]++
	}
	if kinds["building"] != 4 || kinds["sports"] != 1 {
		t.Errorf("kinds = %v, want 4 buildings and 1 sports area", kinds)
	}
}

// --- fake store ---

type fakeStore struct {
	latestFn func(ctx context.Context) (int64, error)
	routesFn func(ctx context.Context, runID int64, category route.Category) ([]route.Route, error)
}

func (f *fakeStore) LatestRun(ctx context.Context) (int64, error) { return f.latestFn(ctx) }

func (f *fakeStore) Routes(ctx context.Context, runID int64, category route.Category) ([]route.Route, error) {
	return f.routesFn(ctx, runID, category)
}

func TestStoredRoutes(t *testing.T) {
	var gotRun int64
	var gotCategory route.Category
	fs := &fakeStore{
		latestFn: func(context.Context) (int64, error) { return 7, nil },
		routesFn: func(_ context.Context, runID int64, c route.Category) ([]route.Route, error) {
			gotRun, gotCategory = runID, c
			return []route.Route{{From: "桃李园", To: "1号楼", Category: c, Tier: route.TierStrict}}, nil
		},
	}
	h := api.New(nil, api.Options{Store: fs, Logger: quiet()}).Router()

	w := do(t, h, http.MethodGet, "/routes?category=canteen_to_dorm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	body := decode[struct {
		RunID  int64         `json:"runId"`
		Count  int           `json:"count"`
		Routes []route.Route `json:"routes"`
	}](t, w)
	if body.RunID != 7 || body.Count != 1 || gotRun != 7 || gotCategory != route.CanteenToDorm {
		t.Errorf("unexpected result: %+v (run %d, category %q)", body, gotRun, gotCategory)
	}

	if w := do(t, h, http.MethodGet, "/routes?category=drone_to_moon", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown category status = %d, want 400", w.Code)
	}

	fs.latestFn = func(context.Context) (int64, error) { return 0, store.ErrNoRun }
	if w := do(t, h, http.MethodGet, "/routes", nil); w.Code != http.StatusNotFound {
		t.Errorf("status with no runs = %d, want 404", w.Code)
	}

	if w := do(t, api.New(nil, api.Options{Logger: quiet()}).Router(), http.MethodGet, "/routes", nil); w.Code != http.StatusNotImplemented {
		t.Errorf("status without store = %d, want 501", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := api.New(nil, api.Options{Logger: quiet()}).Router()

	w := do(t, h, http.MethodOptions, "/route", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}
