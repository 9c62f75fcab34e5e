// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/my-roadmap/roadmap-api/internal/config"
	"github.com/my-roadmap/roadmap-api/internal/handler"
	"github.com/my-roadmap/roadmap-api/internal/middleware"
	"github.com/my-roadmap/roadmap-api/internal/repository"
)

// Deps carries everything route registration needs.  Handlers are built
// by the caller so tests can swap pieces out.
type Deps struct {
	Cfg      config.Config
	Redis    *redis.Client
	Users    *repository.UserRepo
	Auth     *handler.AuthHandler
	Roadmaps *handler.RoadmapHandler
	Payments *handler.PaymentHandler
	Admin    *handler.AdminHandler
}

// Register mounts all routes.
//
// Route groups:
//   - /healthz and /v1/auth/* are unauthenticated (rate limited).
//   - GET /v1/packages is unauthenticated and served through the Redis
//     response cache when one is configured.
//   - POST /v1/payments/webhook is unauthenticated; the HMAC signature
//     on the body is its authentication.
//   - everything else under /v1 requires a valid JWT and a live session.
func Register(e *echo.Echo, d Deps) {
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis)
	respCache := middleware.NewRedisCache(config.LoadCacheConfig(), d.Redis)

	e.GET("/healthz", handler.Health)

	auth := e.Group("/v1/auth", rateLimit)
	auth.POST("/register", d.Auth.Register)
	auth.POST("/verify", d.Auth.Verify)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/forgot-password", d.Auth.ForgotPassword)
	auth.POST("/reset-password", d.Auth.ResetPassword)

	e.GET("/v1/packages", d.Payments.Packages, respCache)
	e.POST("/v1/payments/webhook", d.Payments.Webhook)

	// Protected routes: JWTAuth proves the token signature, SessionGuard
	// then checks it against the stored session and the idle timeout.
	guard := middleware.SessionGuard(d.Users, middleware.SessionGuardConfig{
		IdleTimeout:   time.Duration(d.Cfg.SessionIdleSec) * time.Second,
		TouchInterval: time.Duration(d.Cfg.SessionTouchSec) * time.Second,
		LoginURL:      d.Cfg.LoginURL,
	})
	v1 := e.Group("/v1", middleware.JWTAuth(d.Cfg.JWTSecret), guard, rateLimit)
	v1.GET("/me", d.Auth.Me)
	v1.POST("/logout", d.Auth.Logout)

	v1.POST("/roadmaps", d.Roadmaps.Create)
	v1.GET("/roadmaps", d.Roadmaps.List)
	v1.GET("/roadmaps/:id", d.Roadmaps.Get)

	v1.POST("/payments/checkout", d.Payments.Checkout)
	v1.GET("/payments/transactions", d.Payments.ListTransactions)

	admin := v1.Group("/admin", middleware.RequireRole("ADMIN"))
	admin.POST("/users/:id/credits", d.Admin.GrantCredits)
}
