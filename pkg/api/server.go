// Package api serves training run status over HTTP: health probes, a stats
// snapshot and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/TFMV/siren/pkg/metrics"
)

// ServerOptions defines the configuration for the status server.
type ServerOptions struct {
	Port string
}

// Server exposes the state of a training run.
type Server struct {
	app       *fiber.App
	collector *metrics.Collector
	log       *zap.Logger
	port      string
}

// NewServer creates a status server around a metrics collector.
func NewServer(collector *metrics.Collector, log *zap.Logger, opts ServerOptions) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
		ErrorHandler: errorHandler(log),
	})

	app.Use(recover.New())

	s := &Server{
		app:       app,
		collector: collector,
		log:       log,
		port:      opts.Port,
	}

	app.Get("/health", s.healthHandler)
	app.Get("/health/live", livenessHandler)
	app.Get("/health/ready", readinessHandler)
	app.Get("/stats", s.statsHandler)
	app.Get("/metrics", metricsHandler(collector))

	return s
}

// App returns the underlying fiber application, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start begins listening. It blocks until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	addr := ":" + s.port
	s.log.Info("Starting status server", zap.String("addr", addr))
	if err := s.app.Listen(addr); err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down status server")
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	return nil
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}

		log.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
		})
	}
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"steps":  s.collector.Snapshot().Steps,
	})
}

func livenessHandler(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func readinessHandler(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) statsHandler(c *fiber.Ctx) error {
	return c.JSON(s.collector.Snapshot())
}

// metricsHandler bridges the Prometheus handler into fiber.
func metricsHandler(collector *metrics.Collector) fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
