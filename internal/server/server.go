// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"simplesns/internal/backend"
	"simplesns/internal/config"
	"simplesns/internal/featureflags"
	"simplesns/internal/middleware"
	"simplesns/internal/models"
	"simplesns/internal/objectstore"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	backend        backend.Backend
	objects        *objectstore.LocalStore
	redis          *redis.Client
	auth           *middleware.Authenticator
	flags          *featureflags.Manager
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The /objects routes are mounted only when b serves images from local disk.
func NewServerWithDeps(cfg *config.Config, b backend.Backend, redisClient *redis.Client) *Server {
	s := &Server{
		config:         cfg,
		backend:        b,
		redis:          redisClient,
		auth:           middleware.NewAuthenticator(cfg),
		flags:          featureflags.NewManager(cfg.FeatureFlags),
		promMiddleware: middleware.InitMetrics("simplesns-api"),
	}
	if withStore, ok := b.(interface{ ObjectStore() objectstore.Store }); ok {
		if local, ok := withStore.ObjectStore().(*objectstore.LocalStore); ok {
			s.objects = local
		}
	}
	return s
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "simplesns API",
		BodyLimit:    objectstore.MaxLocalObjectSize,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{Error: fiberErr.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// OpenTelemetry span per request
	app.Use(middleware.TracingMiddleware(s.backend.Provider()))

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Signed object URLs are fetched cross-origin by the web client.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Service limits and per-caller feature switches
	app.Get("/limits", s.auth.Optional(), s.GetLimits)

	// Public post routes
	posts := app.Group("/posts")
	posts.Get("/", s.auth.Optional(), s.ListPosts)
	posts.Get("/:id", s.GetPost)

	// Protected post routes
	posts.Post("/", s.auth.Required(), middleware.RateLimit(
		s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	posts.Put("/:id", s.auth.Required(), s.UpdatePost)
	posts.Delete("/:id", s.auth.Required(), s.DeletePost)

	// Profile routes
	profile := app.Group("/profile", s.auth.Required())
	profile.Get("/", s.GetMyProfile)
	profile.Post("/", s.UpdateMyProfile)
	profile.Put("/", s.UpdateMyProfile)

	// Upload URL issuance
	uploads := app.Group("/uploads", s.auth.Required(), middleware.RateLimit(
		s.redis, 30, time.Minute, "upload_urls"))
	uploads.Post("/", s.CreateUploadURLs)
	uploads.Post("/presigned-urls", s.CreateUploadURLs)

	// Local object storage, authorized by the signed token in the URL
	if s.objects != nil {
		app.Put("/objects/*", s.PutObject)
		app.Get("/objects/*", s.GetObject)
	}
}

// LivenessCheck reports that the process is serving
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// HealthCheck reports the active provider and build version without touching
// any store.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"provider": s.backend.Provider(),
		"version":  s.config.Version,
	})
}

// ReadinessCheck reports whether the backend store is reachable
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if err := s.backend.Ping(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "readiness: store ping failed", slog.String("error", err.Error()))
		storeStatus = "unhealthy"
	}

	// Redis only backs the profile cache and rate limits; without it the API
	// still serves requests.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storeStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   overallStatus,
		"provider": s.backend.Provider(),
		"version":  s.config.Version,
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting",
		slog.String("port", s.config.Port),
		slog.String("provider", s.backend.Provider()),
	)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.backend.Close(); err != nil {
		middleware.Logger.Error("error closing backend", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
