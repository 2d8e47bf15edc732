package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"AppStatus/internal/agent/domain"
	"AppStatus/internal/agent/state"
	"AppStatus/pkg/uuidutil"
)

// StatusService is the part of the status manager exposed over HTTP.
type StatusService interface {
	Running() bool
	Snapshot() state.Snapshot
	Handle(event domain.Event)

	StatusInterval() time.Duration
	SetStatusInterval(interval time.Duration) error
	TimezoneInterval() time.Duration
	SetTimezoneInterval(interval time.Duration) error
	TimeSyncServer() string
	SetTimeSyncServer(server string)
	IncludeIP() bool
	SetIncludeIP(include bool)
}

// RecordReader returns the last record emitted per topic.
type RecordReader interface {
	All() map[string]domain.Record
}

type Server struct {
	router     *gin.Engine
	config     *Config
	service    StatusService
	records    RecordReader
	logger     *slog.Logger
	httpServer *http.Server
}

type Config struct {
	Port    int
	Mode    string
	Name    string
	Version string
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// New создает сервер поверх менеджера статусов
func New(config *Config, service StatusService, records RecordReader, logger *slog.Logger) *Server {
	switch config.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	if logger == nil {
		logger = slog.Default()
	}

	server := &Server{
		router:  gin.New(),
		config:  config,
		service: service,
		records: records,
		logger:  logger,
	}

	server.setupMiddlewares()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddlewares() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logger middleware
	s.router.Use(s.loggerMiddleware())

	// Request ID middleware
	s.router.Use(s.requestIDMiddleware())
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ready", s.readyCheck)

	if s.config.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.config.Metrics))
	}

	// API v1 group
	api := s.router.Group("/api/v1")
	{
		api.GET("/status", s.getStatus)
		api.GET("/records", s.getRecords)

		settings := api.Group("/settings")
		{
			settings.GET("", s.getSettings)
			settings.PATCH("", s.updateSettings)
		}

		// События от клиента очереди
		events := api.Group("/events")
		{
			events.POST("/server-status", s.postEvent(domain.EventServerStatus))
			events.POST("/records-sent", s.postEvent(domain.EventRecordsSent))
			events.POST("/cache-depth", s.postEvent(domain.EventCacheDepth))
		}
	}

	// 404 handler
	s.router.NoRoute(s.notFoundHandler)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   s.config.Name,
		"version":   s.config.Version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) readyCheck(c *gin.Context) {
	if !s.service.Running() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"error":  "Status manager not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"message": "Endpoint not found",
		"path":    c.Request.URL.Path,
	})
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Продолжаем обработку
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		level := slog.LevelDebug
		if statusCode >= 400 {
			level = slog.LevelWarn
		}
		if statusCode >= 500 {
			level = slog.LevelError
		}

		s.logger.Log(c.Request.Context(), level, "HTTP request",
			"status", statusCode,
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"latency", latency,
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// чужой id принимаем только в формате UUID
		requestID := c.GetHeader("X-Request-ID")
		if !uuidutil.IsValid(requestID) {
			requestID = uuidutil.New()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting HTTP server",
		"port", s.config.Port,
		"mode", s.config.Mode,
		"address", addr,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Serve обслуживает уже открытый listener
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown выполняет graceful shutdown сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	s.logger.Info("Server shutdown completed")
	return nil
}

// GetRouter возвращает router для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
