// Package server wires the blog's HTTP surface: middleware, routes, handlers and embedded views.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/session"
	"inkwell/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	appName = "Inkwell"

	// Feature flag names consulted by handlers. Unconfigured flags are on.
	flagRegistration = "registration"
	flagComments     = "comments"

	localUser = "user"
	localCSRF = "csrf"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	store          *cache.Store
	featureFlags   *featureflags.Manager
	sessions       *session.Manager
	passwordPolicy validation.PasswordPolicy
	authService    *service.AuthService
	postService    *service.PostService
	commentService *service.CommentService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, cache.InitRedis(cfg.RedisURL))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, session revocation and rate limits are then skipped.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("server requires config and database")
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("inkwell"),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		store:          cache.NewStore(redisClient, cfg.CacheTTL),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		sessions: session.NewManager(session.Options{
			Secret: cfg.SessionSecret,
			TTL:    cfg.SessionTTL,
			Secure: cfg.SessionCookieSecure,
			Redis:  redisClient,
		}),
		passwordPolicy: validation.PasswordPolicy{
			MinLength:         cfg.PasswordMinLength,
			RequireComplexity: cfg.PasswordRequireComplexity,
		},
	}

	server.authService = service.NewAuthService(server.userRepo, auth.NewPasswordHasher(cost))
	server.postService = service.NewPostService(server.postRepo, server.store, server.authService.IsAdmin)
	server.commentService = service.NewCommentService(server.commentRepo, server.postRepo, server.store)

	return server, nil
}

// NewApp builds the fiber application with views, middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      appName,
		Views:        newViewEngine(),
		ErrorHandler: s.ErrorHandler,
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(recover.Config{EnableStackTrace: s.config.Debug}))

	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Post images are hot-linked from arbitrary hosts.
	app.Use(helmet.New(helmet.Config{
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))

	app.Use(middleware.StructuredLogger())

	if s.config.GlobalRateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        s.config.GlobalRateLimit,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/health/live" || c.Path() == "/health/ready"
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
			},
		}))
	}

	app.Use(encryptcookie.New(encryptcookie.Config{
		Key: cookieKey(s.config.SessionSecret),
	}))

	app.Use(s.LoadIdentity())

	if s.config.CSRFEnabled {
		app.Use(csrf.New(csrf.Config{
			Next:           s.skipCSRF,
			KeyLookup:      "form:_csrf",
			CookieName:     "csrf_",
			CookieSameSite: "Lax",
			CookieSecure:   s.config.SessionCookieSecure,
			CookieHTTPOnly: true,
			Expiration:     time.Hour,
			ContextKey:     localCSRF,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				middleware.Logger.WarnContext(c.UserContext(), "CSRF check failed", slog.String("error", err.Error()))
				return fiber.NewError(fiber.StatusForbidden, "The form has expired, please try again.")
			},
		}))
	}
}

// cookieKey derives the 32-byte encryptcookie key from the session secret.
func cookieKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Get("/", s.Home)
	app.Get("/about", s.About)
	app.Get("/contact", s.Contact)

	registerLimit := middleware.RateLimit(s.redis, middleware.RateLimitConfig{
		Name:    "register",
		Limit:   s.config.RegisterRateLimit,
		Window:  10 * time.Minute,
		Methods: []string{fiber.MethodPost},
	})
	loginLimit := middleware.RateLimit(s.redis, middleware.RateLimitConfig{
		Name:    "login",
		Limit:   s.config.LoginRateLimit,
		Window:  5 * time.Minute,
		Methods: []string{fiber.MethodPost},
	})

	app.Get("/register", s.RegisterPage)
	app.Post("/register", registerLimit, s.Register)
	app.Get("/login", s.LoginPage)
	app.Post("/login", loginLimit, s.Login)
	app.Get("/logout", s.Logout)

	app.Get("/post/:id", s.ShowPost)
	app.Post("/post/:id", s.CreateComment)

	admin := s.AdminRequired()
	app.Get("/new-post", admin, s.NewPostPage)
	app.Post("/new-post", admin, s.CreatePost)
	app.Get("/edit-post/:id", admin, s.EditPostPage)
	app.Post("/edit-post/:id", admin, s.UpdatePost)
	app.Get("/delete/:id", admin, s.DeletePost)

	app.Get("/admin/monitor", admin, monitor.New(monitor.Config{
		Title: "Inkwell Metrics Dashboard",
	}))
	app.Get("/admin/feature-flags", admin, s.GetFeatureFlags)
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

	// Redis is optional; only a configured but unreachable client fails readiness.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
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

// LoadIdentity resolves the session cookie to a user on every request.
// A session naming a user that no longer exists is treated as anonymous and cleared.
func (s *Server) LoadIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _, ok := s.sessions.Resolve(c)
		if !ok {
			if c.Cookies(session.CookieName) != "" {
				s.sessions.Clear(c)
			}
			return c.Next()
		}

		user, err := s.authService.GetUser(c.UserContext(), userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				s.sessions.Clear(c)
				return c.Next()
			}
			return err
		}

		c.Locals(localUser, user)
		c.Locals("userID", user.ID)
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, user.ID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// adminPrefixes are the paths served only behind AdminRequired.
var adminPrefixes = []string{"/new-post", "/edit-post", "/delete", "/admin"}

func isAdminPath(path string) bool {
	for _, prefix := range adminPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// skipCSRF leaves admin pages to AdminRequired when the caller is not an admin, so they get the
// guard's bare 403 instead of the CSRF error page.
func (s *Server) skipCSRF(c *fiber.Ctx) bool {
	if !isAdminPath(c.Path()) {
		return false
	}
	user := currentUser(c)
	return user == nil || !user.IsAdmin
}

// AdminRequired returns middleware that rejects everyone but administrators with a bare 403.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if user == nil || !user.IsAdmin {
			return c.SendStatus(fiber.StatusForbidden)
		}
		return c.Next()
	}
}

// Start listens on the configured address. NewApp is called when it has not been yet.
func (s *Server) Start() error {
	if s.app == nil {
		s.NewApp()
	}

	middleware.Logger.Info("Server starting", slog.String("addr", s.config.Addr()))
	return s.app.Listen(s.config.Addr())
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing sql DB", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
