package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"assetcomposer/internal/config"
	"assetcomposer/internal/database"
	"assetcomposer/internal/handlers"
	"assetcomposer/internal/logger"
	"assetcomposer/internal/middleware"
	"assetcomposer/internal/services"
	"assetcomposer/internal/session"
	"assetcomposer/internal/validator"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "assetcomposer/internal/docs" // Import swagger docs
)

// @title           Asset Composer API
// @version         1.0
// @description     Asset Composer lets users build valuation graphs around their assets, save them as portfolio records, and move them between machines as JSON files.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey OpsKey
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig(appConfig)
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	compositionService := services.NewCompositionService(db)
	sessions := session.NewManager(compositionService)

	stopJanitor := startSessionJanitor(sessions, appConfig.SessionIdleTimeout)
	defer stopJanitor()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	sessionHandler := handlers.NewSessionHandler(sessions, compositionService, auditService, appConfig.MaxImportBytes)
	compositionHandler := handlers.NewCompositionHandler(compositionService, sessions)
	opsHandler := handlers.NewOpsHandler(sessions, appConfig.SessionIdleTimeout)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.NoRoute(middleware.NotFound())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Operational routes, keyed separately from user auth
	ops := v1.Group("/ops")
	ops.Use(middleware.OpsAuthMiddleware(appConfig.OpsAPIKey))
	ops.GET("/sessions", opsHandler.SessionStats)
	ops.POST("/sessions/prune", opsHandler.PruneSessions)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)
	protected.GET("/portfolio/default", compositionHandler.GetDefaultPortfolio)

	// Composition session routes
	sessionRoutes := protected.Group("/sessions")
	sessionRoutes.POST("", sessionHandler.CreateSession)
	sessionRoutes.GET("/:id", sessionHandler.GetSession)
	sessionRoutes.PATCH("/:id", sessionHandler.RenameSession)
	sessionRoutes.DELETE("/:id", sessionHandler.CloseSession)
	sessionRoutes.POST("/:id/nodes", sessionHandler.AddNode)
	sessionRoutes.PATCH("/:id/nodes/:nodeId", sessionHandler.UpdateNode)
	sessionRoutes.PUT("/:id/nodes/:nodeId/position", sessionHandler.MoveNode)
	sessionRoutes.DELETE("/:id/nodes/:nodeId", sessionHandler.RemoveNode)
	sessionRoutes.POST("/:id/nodes/:nodeId/asset", sessionHandler.CreateAssetFromNode)
	sessionRoutes.POST("/:id/edges", sessionHandler.Connect)
	sessionRoutes.DELETE("/:id/edges/:edgeId", sessionHandler.Disconnect)
	sessionRoutes.POST("/:id/save", sessionHandler.Save)
	sessionRoutes.GET("/:id/export", sessionHandler.Export)
	sessionRoutes.POST("/:id/import", sessionHandler.Import)
	sessionRoutes.DELETE("/:id/error", sessionHandler.DismissError)

	// Saved composition routes
	compositions := protected.Group("/compositions")
	compositions.GET("", compositionHandler.ListCompositions)
	compositions.GET("/:id", compositionHandler.GetComposition)
	compositions.POST("/:id/open", compositionHandler.OpenComposition)

	log.Infof("Starting Asset Composer server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}

// startSessionJanitor closes sessions that have been idle longer than
// idleTimeout. The returned func stops it.
func startSessionJanitor(sessions *session.Manager, idleTimeout time.Duration) func() {
	interval := idleTimeout / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	log := logger.Named("janitor")

	go func() {
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				if n := sessions.Prune(now.Add(-idleTimeout)); n > 0 {
					log.Infow("pruned idle sessions", "count", n, "remaining", sessions.Len())
				}
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
