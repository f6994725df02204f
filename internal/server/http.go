package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dvbcss/clocktree/clock"
	"github.com/dvbcss/clocktree/internal/config"
	"github.com/dvbcss/clocktree/internal/registry"
)

// HTTPServer exposes a read-only introspection API over a Registry's
// clock forest: per-clock status snapshots and a tree listing.
type HTTPServer struct {
	config   config.HTTPConfig
	registry *registry.Registry
	logger   *logrus.Logger
	server   *http.Server
}

// StatusResponse is the /clocks response envelope.
type StatusResponse struct {
	Clocks    []clock.Status `json:"clocks"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewHTTPServer builds a server that will introspect reg once Start
// is called.
func NewHTTPServer(cfg config.HTTPConfig, reg *registry.Registry, logger *logrus.Logger) *HTTPServer {
	return &HTTPServer{config: cfg, registry: reg, logger: logger}
}

// Start runs the HTTP server until it fails or is shut down via Stop.
// It blocks, matching net/http.Server.ListenAndServe's own contract.
func (s *HTTPServer) Start() error {
	if s.logger.Level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(s.logger.Writer()))
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.registerRoutes(router)

	s.server = &http.Server{Addr: s.config.Listen, Handler: router}
	s.logger.WithField("addr", s.config.Listen).Info("starting HTTP introspection server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("stopping HTTP introspection server")
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) registerRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/clocks", s.handleListClocks)
		api.GET("/clocks/:id", s.handleGetClock)
		api.GET("/clocks/:id/dispersion", s.handleDispersion)
		api.GET("/health", s.handleHealth)
	}
}

func (s *HTTPServer) handleListClocks(c *gin.Context) {
	ids := s.registry.IDs()
	statuses := make([]clock.Status, 0, len(ids))
	for _, id := range ids {
		cl, _ := s.registry.Get(id)
		statuses = append(statuses, clock.StatusOf(cl))
	}
	c.JSON(http.StatusOK, StatusResponse{Clocks: statuses, Timestamp: time.Now()})
}

func (s *HTTPServer) handleGetClock(c *gin.Context) {
	cl, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "clock not found"})
		return
	}
	c.JSON(http.StatusOK, clock.StatusOf(cl))
}

func (s *HTTPServer) handleDispersion(c *gin.Context) {
	cl, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "clock not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         cl.ID(),
		"dispersion": cl.DispersionAtTime(cl.Now()),
		"timestamp":  time.Now(),
	})
}

func (s *HTTPServer) handleHealth(c *gin.Context) {
	root := s.registry.Root()
	status := "healthy"
	if !root.IsAvailable() {
		status = "unhealthy"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "timestamp": time.Now()})
}
