// Package api serves on-demand route planning over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"drone-route-planner/internal/cache"
	"drone-route-planner/internal/pipeline"
	"drone-route-planner/internal/pkg/metrics"
	"drone-route-planner/internal/route"
)

// Builder produces a new planning state, used by the rebuild endpoint.
type Builder func(ctx context.Context, ov pipeline.Overrides) (*pipeline.State, error)

// RouteStore serves routes recorded by batch runs.
type RouteStore interface {
	LatestRun(ctx context.Context) (int64, error)
	Routes(ctx context.Context, runID int64, category route.Category) ([]route.Route, error)
}

// Options wires optional collaborators. Nil fields disable the feature.
type Options struct {
	Builder  Builder
	Cache    cache.Cache
	CacheTTL time.Duration
	Store    RouteStore
	Logger   *slog.Logger
}

// Server holds the current planning state. Route queries read it under a
// shared lock; a rebuild swaps it atomically once the new state is ready.
type Server struct {
	mu         sync.RWMutex
	state      *pipeline.State
	generation int64
	rebuilding atomic.Bool

	opts Options
	log  *slog.Logger
}

// New creates a server. st may be nil until the first rebuild.
func New(st *pipeline.State, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{opts: opts, log: opts.Logger}
	if st != nil {
		s.state = st
		s.generation = 1
	}
	return s
}

// State returns the current planning state and its generation.
func (s *Server) State() (*pipeline.State, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.generation
}

func (s *Server) swap(st *pipeline.State) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.generation++
	return s.generation
}

// Router builds the gin engine with every endpoint.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log), metrics.Middleware(), cors())

	r.GET("/health", s.health)
	r.GET("/metrics", metrics.Handler())

	r.POST("/route", s.route)

	r.GET("/grid", s.gridStats)
	r.POST("/grid/rebuild", s.rebuild)
	r.GET("/obstacles", s.obstacles)

	r.GET("/routes", s.storedRoutes)

	return r
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP())
	}
}
