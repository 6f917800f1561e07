// Package server exposes the run journal over a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rustyeddy/drawdown/internal/metrics"
	"github.com/rustyeddy/drawdown/journal"
	"github.com/rustyeddy/drawdown/montecarlo"
)

// Store is the read side of the run journal.
type Store interface {
	ListRuns(ctx context.Context, limit int) ([]journal.RunRecord, error)
	GetRun(ctx context.Context, runID string) (journal.RunRecord, error)
	ListSnapshots(ctx context.Context, runID string) ([]journal.SnapshotRecord, error)
	ListTrials(ctx context.Context, runID string) ([]journal.TrialRecord, error)
	ListStats(ctx context.Context, runID string) ([]montecarlo.StepStat, error)
	ExportRunOrg(ctx context.Context, runID string) (string, error)
}

// Options configures the server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	Release        bool
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorDetail.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// RunResponse is a run with its configuration as text.
type RunResponse struct {
	journal.RunRecord
	ConfigText string `json:"config,omitempty"`
}

// Server serves the journal.
type Server struct {
	store   Store
	opts    Options
	logger  *zap.Logger
	router  *gin.Engine
	handler http.Handler
}

// New builds the router.
func New(store Store, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{store: store, opts: opts, logger: logger}

	router := gin.New()
	router.Use(s.requestLogger())
	router.Use(errorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/runs", s.listRuns)
		api.GET("/runs/:id", s.getRun)
		api.GET("/runs/:id/snapshots", s.listSnapshots)
		api.GET("/runs/:id/trials", s.listTrials)
		api.GET("/runs/:id/stats", s.listStats)
		api.GET("/runs/:id/report", s.report)
	}
	router.NoRoute(func(c *gin.Context) {
		abort(c, http.StatusNotFound, "NOT_FOUND", "Not found")
	})

	s.router = router
	s.handler = cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}).Handler(router)
	return s
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", s.opts.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abort(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if runs == nil {
		runs = []journal.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	r, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RunResponse{RunRecord: r, ConfigText: string(r.Config)})
}

func (s *Server) listSnapshots(c *gin.Context) {
	id, ok := s.requireRun(c)
	if !ok {
		return
	}
	snaps, err := s.store.ListSnapshots(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if snaps == nil {
		snaps = []journal.SnapshotRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "snapshots": snaps})
}

func (s *Server) listTrials(c *gin.Context) {
	id, ok := s.requireRun(c)
	if !ok {
		return
	}
	trials, err := s.store.ListTrials(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if trials == nil {
		trials = []journal.TrialRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "trials": trials})
}

func (s *Server) listStats(c *gin.Context) {
	id, ok := s.requireRun(c)
	if !ok {
		return
	}
	stats, err := s.store.ListStats(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if stats == nil {
		stats = []montecarlo.StepStat{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "stats": stats})
}

func (s *Server) report(c *gin.Context) {
	org, err := s.store.ExportRunOrg(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.String(http.StatusOK, org)
}

// requireRun answers 404 for unknown runs so empty child lists are never
// mistaken for missing runs.
func (s *Server) requireRun(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := s.store.GetRun(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return "", false
	}
	return id, true
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, journal.ErrNotFound) {
		abort(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	s.logger.Error("journal query failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "journal query failed")
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: msg}})
}

// requestLogger logs each request and feeds the API metrics.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()

		s.opts.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.opts.Metrics.HTTPLatency.WithLabelValues(route).Observe(elapsed.Seconds())
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		)
	}
}

// errorHandler turns panics into JSON errors.
func errorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		msg := "An unexpected error occurred"
		if s, ok := recovered.(string); ok {
			msg = s
		}
		abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", msg)
	})
}
