package api

import (
	"staffdesk/internal/metrics"
	"staffdesk/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(userHandler *UserHandler, queueHandler *QueueHandler, authHandler *AuthHandler, rdb *redis.Client, requestsPerSecond int, env string) *gin.Engine {
	r := gin.New()

	devMode := env != "prod"

	// Global Middleware
	r.Use(
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
		middleware.TraceMiddleware(),
	)
	r.SetTrustedProxies(nil)

	// Public Routes
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Auth Routes (Public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/verify-reset", authHandler.VerifyReset)
	}

	// Auth Routes (Protected)
	authProtected := r.Group("/v1/auth")
	authProtected.Use(middleware.JWTMiddleware(devMode))
	{
		authProtected.GET("/me", authHandler.GetProfile)
		authProtected.POST("/logout", authHandler.Logout)
	}

	// Rate Limiter for Write Operations
	writeLimiter := middleware.RateLimitMiddleware(rdb, requestsPerSecond)

	// Protected Routes (user administration)
	protected := r.Group("/v1")
	protected.Use(middleware.JWTMiddleware(devMode), middleware.RequireAdmin())
	{
		protected.GET("/users", userHandler.ListUsers)
		protected.POST("/users", writeLimiter, userHandler.CreateUser)
		protected.PUT("/users/:id", writeLimiter, userHandler.UpdateUser)
		protected.POST("/users/:id/reset-password", writeLimiter, userHandler.ResetPassword)
		protected.POST("/users/:id/avatar", writeLimiter, userHandler.UploadAvatar)
		protected.DELETE("/users/:id/avatar", writeLimiter, userHandler.DeleteAvatar)
	}

	// Queue introspection (admin only)
	admin := r.Group("/v1/admin/queue")
	admin.Use(middleware.JWTMiddleware(devMode), middleware.RequireAdmin())
	{
		admin.GET("/status", queueHandler.Status)
		admin.GET("/actions", queueHandler.Actions)
		admin.GET("/actions/:id", queueHandler.Action)
	}

	return r
}
