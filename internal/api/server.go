package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lab-analysis-engine/internal/domain"
	"github.com/lab-analysis-engine/internal/metrics"
	"github.com/lab-analysis-engine/internal/middleware"
	"github.com/lab-analysis-engine/internal/service"
)

// HealthCheck checks one dependency. A failing critical check marks the
// server unhealthy; any other failure marks it degraded.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// Dependencies are the services exposed over HTTP. Feedback may be nil when no
// feedback store is configured.
type Dependencies struct {
	Analysis     *service.AnalysisService
	Feedback     *service.FeedbackService
	HealthChecks []HealthCheck
	Version      string
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
	limiter       *middleware.IPRateLimiter
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(logger))
	router.Use(metrics.GinMiddleware())
	router.Use(middleware.MaxBodySize(cfg.Server.MaxPayloadSize))
	router.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		logger:        logger,
		router:        router,
	}

	if cfg.RateLimit.Enabled {
		server.limiter = middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if s.limiter != nil {
		go s.cleanupLimiter(ctx)
	}

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	if s.limiter != nil {
		v1.Use(s.limiter.Middleware())
	}
	{
		v1.GET("/categories", s.handleCategories)

		v1.POST("/analysis/view", s.handleBuildViews)
		v1.POST("/analysis/export", s.handleExport)
		v1.GET("/analysis/audits", s.handleListAudits)
		v1.GET("/analysis/audits/:request_id", s.handleGetAudit)

		v1.POST("/lab-results/classify", s.handleClassify)
		v1.POST("/lab-results/evaluate", s.handleEvaluate)
		v1.POST("/lab-results/view", s.handleBuildResultViews)
		v1.POST("/lab-results/export", s.handleExportResults)

		fb := v1.Group("/feedback")
		fb.Use(s.requireFeedback)
		{
			fb.POST("", s.handleSubmitFeedback)
			fb.GET("", s.handleListFeedback)
			fb.GET("/export", s.handleExportFeedback)
			fb.POST("/import", s.handleImportFeedback)
			fb.GET("/by-name/:test_name", s.handleGetFeedback)
			fb.DELETE("/:id", s.handleDeleteFeedback)
		}
	}
}

// handleHealth reports the status of every registered dependency
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.deps.HealthChecks))

	for _, hc := range s.deps.HealthChecks {
		if err := hc.Check(ctx); err != nil {
			checks[hc.Name] = err.Error()
			if hc.Critical {
				status = "unhealthy"
				code = http.StatusServiceUnavailable
			} else if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		checks[hc.Name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
		"version":   s.deps.Version,
	})
}

func (s *Server) cleanupLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.limiter.Cleanup(); removed > 0 {
				s.logger.WithField("removed", removed).Debug("Dropped idle rate limiters")
			}
		}
	}
}
