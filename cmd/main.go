package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jashinspires/WorkGrid/internal/handler"
	"github.com/jashinspires/WorkGrid/internal/middleware"
	"github.com/jashinspires/WorkGrid/internal/provision"
	"github.com/jashinspires/WorkGrid/pkg/config"
	"github.com/jashinspires/WorkGrid/pkg/database"
	"github.com/jashinspires/WorkGrid/pkg/jwtutil"
	"github.com/jashinspires/WorkGrid/pkg/logger"
	"github.com/jashinspires/WorkGrid/prometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: "workgrid",
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting WorkGrid...", cfg.LogConfig()...)

	// Initialize database: the process-wide pool, opened once here and
	// drained on shutdown.
	if err := database.Initialize(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)

	// Optional super-admin bootstrap
	created, err := provision.BootstrapSuperAdmin(database.GetDB(), &cfg.Bootstrap)
	if err != nil {
		log.Fatal("Failed to bootstrap super admin", zap.Error(err))
	}
	if created {
		log.Info("Super admin account created", zap.String("email", cfg.Bootstrap.SuperAdminEmail))
	}

	e := newRouter()

	// Start server
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown: drain in-flight requests, then close the pool.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		log.Error("Database close failed", zap.Error(err))
	}
	log.Info("Shutdown complete")
}

func newRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())
	e.Use(middleware.DeadlineMiddleware)

	// Public routes - no authentication required
	e.GET("/", handler.Root)
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	auth := e.Group("/api/auth")
	auth.POST("/login", handler.Login)
	auth.POST("/register-tenant", handler.RegisterTenant)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	api.GET("/auth/me", handler.Me)
	api.POST("/auth/logout", handler.Logout)

	tenants := api.Group("/tenants")
	tenants.GET("", handler.ListTenants)
	tenants.GET("/:tenantId", handler.GetTenant)
	tenants.PUT("/:tenantId", handler.UpdateTenant)
	tenants.POST("/:tenantId/users", handler.AddUser)
	tenants.GET("/:tenantId/users", handler.ListUsers)

	users := api.Group("/users")
	users.PUT("/:userId", handler.UpdateUser)
	users.DELETE("/:userId", handler.DeleteUser)

	projects := api.Group("/projects")
	projects.POST("", handler.CreateProject)
	projects.GET("", handler.GetProjects)
	projects.PUT("/:projectId", handler.UpdateProject)
	projects.DELETE("/:projectId", handler.DeleteProject)
	projects.POST("/:projectId/tasks", handler.CreateTask)
	projects.GET("/:projectId/tasks", handler.GetTasksByProject)
	projects.DELETE("/:projectId/tasks/:taskId", handler.DeleteTask)

	tasks := api.Group("/tasks")
	tasks.PUT("/:taskId", handler.UpdateTask)
	tasks.PATCH("/:taskId/status", handler.UpdateTaskStatus)
	tasks.DELETE("/:taskId", handler.DeleteTask)

	return e
}
