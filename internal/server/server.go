package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alexliesenfeld/health"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/akave-ai/servicelogs/internal/config"
	"github.com/akave-ai/servicelogs/internal/handler"
	"github.com/akave-ai/servicelogs/internal/metrics"
	"github.com/akave-ai/servicelogs/internal/response"
	"github.com/akave-ai/servicelogs/internal/service"
)

// Server holds the Echo app and dependencies.
type Server struct {
	Echo   *echo.Echo
	Config *config.Config
	logger zerolog.Logger
}

// New builds the Echo server and registers routes. nrApp may be nil.
func New(cfg *config.Config, logs *service.LogService, logger zerolog.Logger, nrApp *newrelic.Application) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)
	// behind a local proxy, trust X-Forwarded-For only from loopback
	e.IPExtractor = echo.ExtractIPFromXFFHeader(echo.TrustLoopback(true))

	e.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeout) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeout) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.Server.IdleTimeout) * time.Second

	e.Use(
		middleware.RequestID(),
		middleware.Recover(),
		requestLogger(logger),
		newRelicTransaction(nrApp),
		middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.Server.CORSAllowedOrigins}),
		compress(),
	)

	checker := health.NewChecker(
		health.WithTimeout(5*time.Second),
		health.WithCheck(health.Check{
			Name:    "storage",
			Timeout: 2 * time.Second,
			Check:   logs.Ping,
		}),
	)

	serviceName := "servicelogs"
	if cfg.Observability != nil && cfg.Observability.ServiceName != "" {
		serviceName = cfg.Observability.ServiceName
	}
	e.GET("/", func(c echo.Context) error {
		return response.OK(c, map[string]any{"service": serviceName, "env": cfg.Primary.Env})
	})
	e.GET("/healthz", echo.WrapHandler(health.NewHandler(checker)))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	logHandler := &handler.LogHandler{Service: logs}
	g := e.Group("/logs")
	g.GET("/:app_id", logHandler.Search)
	g.POST("/:app_id", logHandler.Create)
	g.GET("/:app_id/:log_id", logHandler.Retrieve)
	g.PUT("/:app_id/:log_id", logHandler.Update)
	g.DELETE("/:app_id/:log_id", logHandler.Remove)

	return &Server{Echo: e, Config: cfg, logger: logger}
}

// Start starts the HTTP server. Blocks until the context is cancelled or the
// server fails. On cancel the server drains in-flight requests for up to
// server.shutdown_timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + s.Config.Server.Port
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- s.Echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.Config.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	s.logger.Info().Msg("shutting down http server")
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
