// Package mgmt is the management API: probes, metrics, the override
// controls, the max-age settings form, the archive listing and a manual
// sweep trigger.
package mgmt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/tabpile/internal/affordance"
	"github.com/p-blackswan/tabpile/internal/event"
	"github.com/p-blackswan/tabpile/internal/health"
	"github.com/p-blackswan/tabpile/internal/metrics"
	"github.com/p-blackswan/tabpile/internal/record"
	"github.com/p-blackswan/tabpile/internal/requestid"
	"github.com/p-blackswan/tabpile/internal/tabs"
	"github.com/p-blackswan/tabpile/internal/tracker"
)

// ServerConfig holds configuration for the management API server.
type ServerConfig struct {
	ListenAddr  string
	AuthConfig  AuthConfig
	RateLimit   RateLimitConfig
	CORSOrigins string
	TimerName   string // timer name used for manual sweeps
}

// DestinationSource exposes the resolved archive folder.
type DestinationSource interface {
	Destination() (tracker.Destination, bool)
}

// ArchiveLister lists entries of a bookmark folder.
type ArchiveLister interface {
	List(ctx context.Context, parentID string, limit int) ([]tabs.Bookmark, error)
}

// Deps are the components the API reads and drives.
type Deps struct {
	Records     *record.Adapter
	Controls    *affordance.Registry
	Destination DestinationSource
	Archive     ArchiveLister
	Events      event.Publisher
	Checker     *health.Checker
	Metrics     *metrics.Metrics
}

// Server is the management API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures a new management API server. ctx bounds
// background work such as rate limiter housekeeping.
func NewServer(ctx context.Context, cfg ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	if cfg.TimerName == "" {
		cfg.TimerName = tracker.DefaultConfig().TimerName
	}

	handlers := NewHandlers(cfg, deps, logger)

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "mgmt_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(ctx, cfg, logger)
	s.setupRoutes(handlers, deps.Metrics)

	return s
}

func (s *Server) setupMiddleware(ctx context.Context, cfg ServerConfig, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(requestid.Middleware())

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, PUT, OPTIONS",
		}))
	}

	if cfg.RateLimit.RPS > 0 {
		s.app.Use(NewRateLimitMiddleware(ctx, cfg.RateLimit))
	}

	s.app.Use(NewAuthMiddleware(cfg.AuthConfig, logger))

	// Audit middleware (log every request)
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if isProbe(path) {
			return c.Next()
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Str("request_id", fmt.Sprintf("%v", c.Locals("request_id"))).
			Msg("mgmt api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, metricsCollector *metrics.Metrics) {
	s.app.Get("/healthz", health.LivenessHandler())
	s.app.Get("/readyz", h.Readiness)

	if metricsCollector != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(metricsCollector.Handler()))
	} else {
		s.app.Get("/metrics", func(c *fiber.Ctx) error {
			return c.SendString("# No metrics collector configured\n")
		})
	}

	v1 := s.app.Group("/api/v1")

	v1.Get("/tabs", h.ListTabs)
	v1.Post("/tabs/:id/toggle", requireRole(RoleOperator), h.ToggleTab)

	v1.Get("/settings", h.GetSettings)
	v1.Put("/settings", requireRole(RoleAdmin), h.PutSettings)

	v1.Get("/records", h.ListRecords)
	v1.Get("/archive", h.ListArchive)

	v1.Post("/sweep", requireRole(RoleOperator), h.TriggerSweep)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8090"
	}

	s.logger.Info().Str("addr", addr).Msg("management API server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("management API server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		// Don't leak internal details
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    http.StatusText(code),
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
