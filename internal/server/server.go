// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "sutnist/docs" // swagger docs
	"sutnist/internal/config"
	"sutnist/internal/export"
	"sutnist/internal/middleware"
	"sutnist/internal/models"
	"sutnist/internal/notifications"
	"sutnist/internal/repository"
	"sutnist/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	appOnce        sync.Once
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	requestIDs     *snowflake.Node
	rateLimiter    *middleware.RateLimiter

	store    repository.Store
	notifier *notifications.Notifier
	hub      *notifications.Hub

	sessions      *service.SessionService
	identity      *service.IdentityService
	posts         *service.PostService
	engagement    *service.EngagementService
	moderation    *service.ModerationService
	notifications *service.NotificationService
	images        *service.ImageService
	feed          *export.FeedExporter
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
// redisClient may be nil; realtime push and the session deny-list are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}

	sqlxDB, err := export.FromGorm(db)
	if err != nil {
		return nil, err
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("sutnist-api"),
		requestIDs:     node,
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.Env),
		store:          repository.NewStore(db),
		feed:           export.NewFeedExporter(sqlxDB, cfg.PublicBaseURL),
	}

	var publisher service.Publisher
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		publisher = server.notifier
	}

	ttl := time.Duration(cfg.JWTTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	server.sessions = service.NewSessionService(cfg.JWTSecret, ttl, redisClient)
	server.identity = service.NewIdentityService(server.store, server.sessions)
	isAdmin := server.identity.IsAdmin
	server.posts = service.NewPostService(server.store, isAdmin)
	server.engagement = service.NewEngagementService(server.store, isAdmin)
	server.moderation = service.NewModerationService(server.store, isAdmin, publisher)
	server.notifications = service.NewNotificationService(server.store.Notifications())
	server.images = service.NewImageService(server.store.Images(), cfg)

	return server, nil
}

const defaultSessionTTL = 7 * 24 * time.Hour

func uploadLimitMB(cfg *config.Config) int {
	if cfg.ImageMaxUploadSizeMB > 0 {
		return cfg.ImageMaxUploadSizeMB
	}
	return service.DefaultImageMaxUploadSizeMB
}

// App returns the configured Fiber application, building it on first use.
func (s *Server) App() *fiber.App {
	s.appOnce.Do(func() {
		app := fiber.New(fiber.Config{
			AppName:   "Sutnist API",
			BodyLimit: (uploadLimitMB(s.config) + 1) * 1024 * 1024,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				if fe, ok := err.(*fiber.Error); ok {
					return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
				}
				slog.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
				return models.RespondWithError(c, fiber.StatusInternalServerError,
					models.NewInternalError(err))
			},
		})
		s.SetupMiddleware(app)
		s.SetupRoutes(app)
		s.app = app
	})
	return s.app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return s.requestIDs.Generate().String()
		},
	}))

	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// uploaded images are embedded by the website on another origin
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError("Too many requests, please try again later."))
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api", s.OptionalAuth())
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/register", s.rateLimiter.Limit("register", 5, 10*time.Minute, middleware.FailOpen), s.Register)
	auth.Post("/login", s.rateLimiter.Limit("login", 10, 5*time.Minute, middleware.FailOpen), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Specific /me routes before generic /:id
	users := api.Group("/users")
	users.Get("/me", s.AuthRequired(), s.GetMyProfile)
	users.Put("/me", s.AuthRequired(), s.UpdateMyProfile)
	users.Get("/me/posts", s.AuthRequired(), s.GetMyPosts)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Post("/:id/promote-admin", s.AuthRequired(), s.AdminRequired(), s.PromoteToAdmin)
	users.Post("/:id/demote-admin", s.AuthRequired(), s.AdminRequired(), s.DemoteFromAdmin)
	users.Get("/:id", s.GetUserProfile)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", s.AuthRequired(),
		s.rateLimiter.Limit("create_post", 5, 10*time.Minute, middleware.FailOpen), s.CreatePost)
	posts.Post("/:id/view", s.RecordView)
	posts.Post("/:id/like", s.AuthRequired(), s.ToggleLike)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", s.AuthRequired(),
		s.rateLimiter.Limit("create_comment", 10, time.Minute, middleware.FailOpen), s.CreateComment)
	posts.Get("/:id", s.GetPost)

	notifs := api.Group("/notifications", s.AuthRequired())
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadCount)
	notifs.Post("/read", s.MarkNotificationsRead)

	images := api.Group("/images")
	images.Post("/", s.AuthRequired(),
		s.rateLimiter.Limit("upload_image", 20, 10*time.Minute, middleware.FailOpen), s.UploadImage)
	images.Get("/:hash", s.GetImage)

	api.Get("/feed.json", s.GetFeedExport)

	api.Get("/ws", s.AuthRequired(), s.WebsocketUpgradeRequired(), s.WebsocketHandler())

	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Get("/posts/pending", s.GetPendingPosts)
	admin.Post("/posts/:id/approve", s.ApprovePost)
	admin.Post("/posts/:id/reject", s.RejectPost)
	admin.Get("/admins", s.ListAdmins)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// OptionalAuth attaches the session of a valid bearer token to the request. Requests without
// a token continue as guests; a bad token is remembered for AuthRequired.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := middleware.BearerToken(c)
		if strings.HasPrefix(c.Path(), "/api/ws") {
			token, ok = middleware.WebSocketToken(c)
		}
		if !ok {
			return c.Next()
		}

		claims, err := s.sessions.Parse(c.UserContext(), token)
		if err != nil {
			c.Locals(authErrorKey, err)
			return c.Next()
		}

		c.Locals("userID", claims.UserID)
		c.Locals(claimsKey, claims)
		c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, claims.UserID))
		return c.Next()
	}
}

// AuthRequired rejects requests that did not present a valid session.
// Must be placed after OptionalAuth.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err, ok := c.Locals(authErrorKey).(error); ok {
			return models.RespondWithAppError(c, err)
		}
		if currentUserID(c) == 0 {
			return models.RespondWithAppError(c, models.NewUnauthenticatedError("Authorization required"))
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := s.identity.IsAdmin(c.UserContext(), currentUserID(c))
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if !admin {
			return models.RespondWithAppError(c, models.NewUnauthorizedError("Admin access required"))
		}
		return c.Next()
	}
}

// Start wires the websocket hub to Redis and serves HTTP until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				slog.Error("failed to start notification wiring", slog.String("error", err.Error()))
			}
		}()
	}

	slog.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			slog.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			slog.Error("error shutting down notification hub", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			slog.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			slog.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	slog.Info("server shutdown complete")
	return nil
}
