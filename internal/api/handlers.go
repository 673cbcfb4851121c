package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"drone-route-planner/internal/analysis"
	"drone-route-planner/internal/cache"
	"drone-route-planner/internal/pipeline"
	"drone-route-planner/internal/pkg/metrics"
	"drone-route-planner/internal/planner"
	"drone-route-planner/internal/route"
	"drone-route-planner/internal/store"
)

// Point is a lon/lat pair in request and response bodies.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) orb() orb.Point { return orb.Point{p.X, p.Y} }

type RouteRequest struct {
	Start *Point `json:"start"`
	End   *Point `json:"end"`
}

type RouteResponse struct {
	Path           []Point    `json:"path"`
	Success        bool       `json:"success"`
	Message        string     `json:"message,omitempty"`
	Tier           route.Tier `json:"tier,omitempty"`
	Collides       bool       `json:"collides,omitempty"`
	Rescued        bool       `json:"rescued,omitempty"`
	DistanceMeters float64    `json:"distanceMeters,omitempty"`
	Cached         bool       `json:"cached,omitempty"`
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// GET /health
func (s *Server) health(c *gin.Context) {
	st, gen := s.State()
	if st == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "waiting for grid", "hasGrid": false})
		return
	}

	counts := st.Dataset.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"hasGrid":    true,
		"generation": gen,
		"builtAt":    st.BuiltAt.UTC().Format(time.RFC3339),
		"gates":      counts["gates"],
		"canteens":   counts["canteens"],
		"dorms":      counts["dorms"],
	})
}

// POST /route
func (s *Server) route(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Start == nil || req.End == nil {
		errorJSON(c, http.StatusBadRequest, "start and end are required")
		return
	}

	st, gen := s.State()
	if st == nil {
		errorJSON(c, http.StatusServiceUnavailable, "grid not built, call /grid/rebuild first")
		return
	}

	ctx := c.Request.Context()
	key := fmt.Sprintf("%s:g%d", cache.RouteKey(req.Start.orb(), req.End.orb()), gen)
	if resp, ok := s.cached(ctx, key); ok {
		c.JSON(http.StatusOK, resp)
		return
	}

	res, err := st.Planner.FindRoute(ctx, req.Start.orb(), req.End.orb())
	if errors.Is(err, planner.ErrNoRoute) {
		s.log.Info("route refused", "start", req.Start, "end", req.End, "err", err)
		c.JSON(http.StatusOK, RouteResponse{Path: []Point{}, Success: false, Message: err.Error()})
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			errorJSON(c, http.StatusRequestTimeout, "request cancelled")
			return
		}
		s.log.Error("route failed", "start", req.Start, "end", req.End, "err", err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.ObserveRoute("on_demand", string(res.Tier), res.Expanded, res.Duration)

	resp := RouteResponse{
		Path:           make([]Point, len(res.Path)),
		Success:        true,
		Tier:           res.Tier,
		Collides:       res.Collides,
		Rescued:        res.Rescued,
		DistanceMeters: analysis.GeodesicLengthKm(res.Path) * 1000,
	}
	for i, p := range res.Path {
		resp.Path[i] = Point{X: p[0], Y: p[1]}
	}
	if res.Tier == route.TierStraight {
		resp.Message = "no grid route found, straight line returned"
	}

	s.log.Info("route planned",
		"start", req.Start,
		"end", req.End,
		"tier", res.Tier,
		"waypoints", len(res.Path),
		"distance_m", int(resp.DistanceMeters),
		"took", res.Duration)

	s.store(ctx, key, resp)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) cached(ctx context.Context, key string) (RouteResponse, bool) {
	if s.opts.Cache == nil {
		return RouteResponse{}, false
	}

	data, err := s.opts.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("route cache unavailable", "err", err)
		}
		metrics.CacheMisses.Inc()
		return RouteResponse{}, false
	}

	var resp RouteResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		s.log.Warn("discarding undecodable cache entry", "key", key, "err", err)
		metrics.CacheMisses.Inc()
		return RouteResponse{}, false
	}
	metrics.CacheHits.Inc()
	resp.Cached = true
	return resp, true
}

func (s *Server) store(ctx context.Context, key string, resp RouteResponse) {
	if s.opts.Cache == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.opts.Cache.Set(ctx, key, data, s.opts.CacheTTL); err != nil {
		s.log.Warn("route cache write failed", "err", err)
	}
}

// GET /grid
func (s *Server) gridStats(c *gin.Context) {
	st, gen := s.State()
	if st == nil {
		errorJSON(c, http.StatusServiceUnavailable, "grid not built")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"generation": gen,
		"grid":       st.Grid.Stats(),
	})
}

// POST /grid/rebuild reloads the campus data and swaps in a new grid.
func (s *Server) rebuild(c *gin.Context) {
	if s.opts.Builder == nil {
		errorJSON(c, http.StatusNotImplemented, "rebuild not configured")
		return
	}

	var ov pipeline.Overrides
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&ov); err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if ov.CellSize != nil && !(*ov.CellSize > 0) {
		errorJSON(c, http.StatusBadRequest, "cellSize must be positive")
		return
	}
	if ov.Clearance != nil && *ov.Clearance < 0 {
		errorJSON(c, http.StatusBadRequest, "clearance must not be negative")
		return
	}

	if !s.rebuilding.CompareAndSwap(false, true) {
		errorJSON(c, http.StatusConflict, "a rebuild is already running")
		return
	}
	defer s.rebuilding.Store(false)

	s.log.Info("grid rebuild requested", "override_cell_size", ov.CellSize != nil, "override_clearance", ov.Clearance != nil)
	st, err := s.opts.Builder(c.Request.Context(), ov)
	if err != nil {
		s.log.Error("grid rebuild failed", "err", err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	gen := s.swap(st)
	cfg := st.Grid.Config()
	s.log.Info("grid rebuilt", "generation", gen, "cell_size", cfg.CellSize, "clearance", cfg.Clearance)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"generation": gen,
		"grid":       st.Grid.Stats(),
	})
}

// GET /obstacles returns the obstacle polygons as a GeoJSON FeatureCollection.
func (s *Server) obstacles(c *gin.Context) {
	st, _ := s.State()
	if st == nil {
		errorJSON(c, http.StatusServiceUnavailable, "grid not built")
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, b := range st.Dataset.Buildings {
		f := geojson.NewFeature(orb.Polygon{b})
		f.Properties["kind"] = "building"
		fc.Append(f)
	}
	for _, a := range st.Dataset.Sports {
		f := geojson.NewFeature(orb.Polygon{a.Ring})
		f.Properties["kind"] = "sports"
		f.Properties["name"] = a.Name
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

// GET /routes?category= returns the routes of the latest batch run.
func (s *Server) storedRoutes(c *gin.Context) {
	if s.opts.Store == nil {
		errorJSON(c, http.StatusNotImplemented, "route store not configured")
		return
	}

	category := route.Category(c.Query("category"))
	switch category {
	case "", route.CanteenToDorm, route.GateToDorm:
	default:
		errorJSON(c, http.StatusBadRequest, fmt.Sprintf("unknown category %q", category))
		return
	}

	ctx := c.Request.Context()
	runID, err := s.opts.Store.LatestRun(ctx)
	if errors.Is(err, store.ErrNoRun) {
		errorJSON(c, http.StatusNotFound, "no batch run recorded")
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}

	routes, err := s.opts.Store.Routes(ctx, runID, category)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"runId":   runID,
		"count":   len(routes),
		"routes":  routes,
	})
}
