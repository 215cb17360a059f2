// Package server - HTTP хост коннектора на gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"files_connector/internal/dispatch"
	"files_connector/internal/manifest"
)

// InvocationHeader - заголовок с идентификатором вызова
const InvocationHeader = "X-Invocation-Id"

// Service связывает манифест сервиса с его диспетчером
type Service struct {
	Manifest   *manifest.Manifest
	Dispatcher *dispatch.Dispatcher
}

// Server - HTTP сервер со всеми зарегистрированными сервисами
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	services map[string]Service
	order    []string
	log      zerolog.Logger
}

// New создаёт сервер. Идентификатор сервиса берётся из манифеста.
func New(logger zerolog.Logger, services ...Service) *Server {
	s := &Server{
		services: make(map[string]Service, len(services)),
		log:      logger,
	}
	for _, svc := range services {
		id := svc.Manifest.Service().ID
		if _, dup := s.services[id]; !dup {
			s.order = append(s.order, id)
		}
		s.services[id] = svc
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())
	s.engine.Use(corsMiddleware())
	s.registerRoutes()
	return s
}

// Handler возвращает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start запускает прослушивание порта в отдельной горутине
func (s *Server) Start(port int) {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.log.Info().Int("port", port).Msg("HTTP server starting")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
		}
	}()
}

// Stop останавливает сервер, дожидаясь текущих запросов
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", metricsHandler())

	v1 := s.engine.Group("/api/v1")
	{
		services := v1.Group("/services")
		{
			services.GET("", s.listServices)
			services.GET("/:service", s.getService)
			services.GET("/:service/operations", s.listOperations)
			services.POST("/:service/operations/:operationId/invoke", s.invoke)
		}
	}
}

// loggingMiddleware пишет строку лога на каждый запрос
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// corsMiddleware добавляет CORS заголовки
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+InvocationHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
