// Package api is the optional admin HTTP surface of the worker: queue
// statistics, job lookup, on-demand polling and render previews.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/orrn/printworker/internal/api/handlers"
	"github.com/orrn/printworker/internal/api/middleware"
	"github.com/orrn/printworker/internal/config"
	"github.com/orrn/printworker/internal/core"
)

type Deps struct {
	Worker    handlers.Poller
	Reader    core.JobReader
	Renderer  core.DocumentRenderer
	Metrics   handlers.MetricsSource
	Documents handlers.DocumentSource
	Logger    *slog.Logger
}

type Server struct {
	cfg    config.ServerConfig
	router *gin.Engine
	http   *http.Server
	logger *slog.Logger
}

func NewServer(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	auth, err := middleware.NewAuthMiddleware(cfg.PasswordHash, cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	s := &Server{cfg: cfg, logger: deps.Logger.With("component", "api")}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
		router.Use(cors.New(corsConfig))
	}

	workerHandler := handlers.NewWorkerHandler(deps.Worker, deps.Reader, deps.Metrics)
	jobHandler := handlers.NewJobHandler(deps.Reader, deps.Documents)
	renderHandler := handlers.NewRenderHandler(deps.Renderer)

	router.GET("/health", workerHandler.Health)

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", auth.LoginHandler)
			authRoutes.POST("/logout", auth.LogoutHandler)
		}

		protected := api.Group("")
		protected.Use(auth.RequireAuth())
		{
			protected.GET("/stats", workerHandler.Stats)
			protected.POST("/poll", workerHandler.Poll)
			protected.GET("/jobs", jobHandler.ListJobs)
			protected.GET("/jobs/:id", jobHandler.GetJob)
			protected.GET("/jobs/:id/document", jobHandler.GetDocument)
			protected.POST("/render/:type", renderHandler.Preview)
		}
	}

	s.router = router
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("admin api listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
