// Package dashboard serves a results directory over HTTP: run results as
// JSON, a statistics table, the Markdown report and prometheus metrics.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bgricker/genomeflow/internal/metrics"
	"github.com/bgricker/genomeflow/internal/output"
	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/seqio"
)

// Config holds dashboard configuration.
type Config struct {
	Addr string
	// Dir is scanned for results.json files on every request.
	Dir string
	// Table, when set, is served by /api/table instead of the assembly
	// statistics collected from Dir.
	Table  string
	Title  string
	Logger *zap.Logger
	Now    func() time.Time
}

// Server is the dashboard HTTP server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        Config
}

// NewServer builds the router and HTTP server.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))

	s := &Server{router: router, cfg: cfg}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.cfg.Logger.Info("dashboard listening", zap.String("addr", s.httpServer.Addr), zap.String("dir", s.cfg.Dir))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start dashboard: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cfg.Logger.Info("dashboard shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.healthCheck)
	s.router.GET("/metrics", s.metrics)
	s.router.GET("/report", s.report)

	api := s.router.Group("/api")
	{
		api.GET("/results", s.listResults)
		api.GET("/table", s.table)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"dir":       s.cfg.Dir,
		"timestamp": s.cfg.Now().UTC(),
	})
}

func (s *Server) loadResults(c *gin.Context) ([]report.WorkflowResult, bool) {
	results, err := output.FindResults(s.cfg.Dir)
	if err != nil {
		s.cfg.Logger.Warn("load results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if sample := c.Query("sample"); sample != "" {
		for _, res := range results {
			if res.Sample == sample {
				return []report.WorkflowResult{res}, true
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("sample %q not found", sample)})
		return nil, false
	}
	return results, true
}

func (s *Server) listResults(c *gin.Context) {
	results, ok := s.loadResults(c)
	if !ok {
		return
	}
	if results == nil {
		results = []report.WorkflowResult{}
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"summary": report.Summarize(results),
	})
}

func (s *Server) table(c *gin.Context) {
	var table seqio.Table
	if s.cfg.Table != "" {
		t, err := seqio.ReadTable(s.cfg.Table, seqio.DelimiterFor(s.cfg.Table))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		table = t
	} else {
		results, ok := s.loadResults(c)
		if !ok {
			return
		}
		table = output.StatsTable(results)
	}
	rows := table.Rows
	if rows == nil {
		rows = []seqio.Row{}
	}
	c.JSON(http.StatusOK, gin.H{"columns": table.Columns, "rows": rows})
}

func (s *Server) report(c *gin.Context) {
	results, ok := s.loadResults(c)
	if !ok {
		return
	}
	opts := output.ReportOptions{Title: s.cfg.Title, Generated: s.cfg.Now(), BaseDir: s.cfg.Dir}
	var doc output.Document
	if len(results) == 1 {
		doc = output.BuildReport(results[0], opts)
	} else {
		doc = output.BuildSummary(results, opts)
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", doc.Render())
}

func (s *Server) metrics(c *gin.Context) {
	results, ok := s.loadResults(c)
	if !ok {
		return
	}
	recorder := metrics.New()
	for _, res := range results {
		recorder.Replay(res)
	}
	recorder.Handler().ServeHTTP(c.Writer, c.Request)
}
