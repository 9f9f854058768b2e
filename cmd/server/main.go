package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coachlink/coachlink/internal/config"
	"github.com/coachlink/coachlink/internal/handler"
	"github.com/coachlink/coachlink/internal/middleware"
	"github.com/coachlink/coachlink/internal/model"
	"github.com/coachlink/coachlink/internal/repository"
	"github.com/coachlink/coachlink/internal/service"
	"github.com/coachlink/coachlink/internal/transport"
	"github.com/coachlink/coachlink/migrations"
	"github.com/coachlink/coachlink/pkg/auth"
	"github.com/coachlink/coachlink/pkg/push"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// @title           CoachLink Notification API
// @version         1.0
// @description     Chat notification delivery and suppression service: push token registry, activity tracking, background chat sessions and delivery logging.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  support@coachlink.local

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	log.Printf("🚀 Starting CoachLink Notification Server [env=%s]", cfg.App.Env)

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Printf("⚠️  Migration warning: %v", err)
		log.Println("📦 Falling back to GORM AutoMigrate...")
		// Fallback to AutoMigrate if migration files fail
		if err := db.AutoMigrate(
			&model.NotificationToken{},
			&model.UserActivity{},
			&model.NotificationLog{},
		); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
	}
	log.Println("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// ==================== Push Transports ====================
	fcmService, err := push.NewFCMService(cfg.FCM.CredentialsFile)
	if err != nil {
		log.Printf("⚠️  FCM not available: %v (remote push disabled)", err)
	}
	if fcmService != nil {
		log.Println("✅ FCM remote push configured")
	}

	expoSender := push.NewExpoSender(cfg.Expo.BaseURL, cfg.Notify.HTTPTimeout)
	log.Printf("📲 Expo push gateway: %s", cfg.Expo.BaseURL)

	// ==================== Initialize Layers ====================
	// JWT Manager for stream tokens
	jwtManager := auth.NewJWTManager(cfg.StreamToken.Secret, cfg.StreamToken.Expiry)

	// Repositories
	tokenRepo := repository.NewTokenRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	logRepo := repository.NewNotificationLogRepository(db)

	// Services
	activityTracker := service.NewActivityTracker(activityRepo, rdb)
	registryService := service.NewRegistryService(tokenRepo, cfg.Notify.AllowMockTokens)
	permissions := service.NewDevicePermissions(registryService)

	var remote service.RemotePusher
	if fcmService != nil {
		remote = fcmService
	}
	dispatcher := service.NewDispatcher(
		activityTracker,
		registryService,
		permissions,
		logRepo,
		remote,
		expoSender,
		cfg.Notify.PermissionTimeout,
	)

	// Chat transport and background session
	tokenSource := service.NewHTTPTokenSource(cfg.Transport.TokenURL, cfg.Notify.HTTPTimeout)
	streamClient := transport.NewStreamClient(transport.Config{
		WSURL:        cfg.Transport.WSURL,
		DialTimeout:  cfg.Transport.DialTimeout,
		MaxReconnect: cfg.Transport.MaxReconnect,
	})
	sessionManager := service.NewSessionManager(streamClient, tokenSource, dispatcher)
	bootstrapper := service.NewBootstrapper(sessionManager, activityTracker)

	// Activity fan-out loop (Redis Pub/Sub keeps instances in sync)
	trackerCtx, trackerCancel := context.WithCancel(context.Background())
	defer trackerCancel()
	go activityTracker.Run(trackerCtx)

	// Handlers
	tokenHandler := handler.NewTokenHandler(jwtManager)
	notificationHandler := handler.NewNotificationHandler(registryService, permissions, activityTracker, dispatcher, logRepo)
	sessionHandler := handler.NewSessionHandler(sessionManager, bootstrapper)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Serve swagger.json at /docs/swagger.json to avoid conflict with /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")

	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	// Global middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "coachlink-notifications",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// ==================== API Routes ====================
	api := router.Group("/api")
	{
		// Token exchange (public - callers present their identity)
		api.POST("/stream-token", tokenHandler.IssueStreamToken)

		// Registration and delivery
		api.POST("/notifications/register", notificationHandler.RegisterToken)
		api.POST("/notifications/test-webhook", notificationHandler.TestWebhook)
		api.POST("/activity", notificationHandler.SetActivity)

		// Session lifecycle
		api.POST("/sessions/bootstrap", sessionHandler.Bootstrap)
		api.GET("/sessions/status", sessionHandler.Status)

		// Chat
		api.POST("/chat/messages", sessionHandler.SendMessage)
		api.GET("/chat/messages", sessionHandler.GetMessages)

		// Diagnostics (require a valid stream token)
		protected := api.Group("")
		protected.Use(middleware.StreamAuthMiddleware(jwtManager))
		{
			protected.GET("/notifications/tokens/:userId", notificationHandler.GetTokens)
			protected.DELETE("/notifications/tokens/:userId/:platform", notificationHandler.UnregisterToken)
			protected.GET("/notifications/logs/:userId", notificationHandler.GetLogs)
		}
	}

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	log.Printf("🌐 CoachLink Notification API running on http://0.0.0.0:%s", cfg.App.Port)
	log.Printf("📋 API docs: http://0.0.0.0:%s/swagger/index.html", cfg.App.Port)
	log.Printf("🔌 Chat transport: %s", cfg.Transport.WSURL)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	if err := bootstrapper.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Session teardown: %v", err)
	}
	trackerCancel()
	log.Println("✅ Server exited gracefully")
}
