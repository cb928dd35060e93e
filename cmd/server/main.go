package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"slidehub/internal/config"
	"slidehub/internal/database"
	"slidehub/internal/handlers"
	"slidehub/internal/jobs"
	"slidehub/internal/logging"
	"slidehub/internal/middleware"
	"slidehub/internal/presence"
	"slidehub/internal/services"
	"slidehub/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting SlideHub Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	// Initialize MongoDB (required - session rows and snapshots live here)
	log.Println("🔗 Connecting to MongoDB...")
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	if err := mongoDB.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize MongoDB indexes: %v", err)
	}
	log.Println("✅ MongoDB connected successfully")

	// Initialize Redis (optional - presence degrades to offline mode without it)
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		log.Println("🔗 Connecting to Redis...")
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (live presence disabled)", err)
			redisService = nil
		} else {
			log.Println("✅ Redis connected successfully")
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - live presence disabled")
	}

	// Initialize JWT auth
	var jwtAuth *auth.LocalJWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewLocalJWTAuth(cfg.JWTSecret, 0, 0)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
		}
		log.Println("✅ JWT auth initialized")
	} else {
		log.Println("⚠️ JWT_SECRET not set - auth disabled (development mode only)")
	}

	// Each server process gets its own instance ID so it can tell its
	// own published change events apart from other instances'.
	instanceID := uuid.New().String()

	// Initialize services
	connManager := services.NewConnectionManager()
	metrics := services.InitMetrics(connManager)

	var changeChannel *services.ChangeChannelService
	if redisService != nil {
		changeChannel = services.NewChangeChannelService(redisService, instanceID)
	}

	sessionStore := services.NewSessionStore(mongoDB, changeChannelOrNil(changeChannel))
	snapshotStore := services.NewSnapshotStore(mongoDB)

	var channel presence.Channel
	if changeChannel != nil {
		channel = changeChannel
	}
	presenceManager := presence.NewManager(sessionStore, channel)

	collabWSHandler := handlers.NewCollabWebSocketHandler(
		presenceManager,
		snapshotStore,
		connManager,
		metrics,
		cfg.CursorThrottle,
		cfg.AutoSaveInterval,
	)
	healthHandler := handlers.NewHealthHandler(connManager, mongoDB, redisService)
	authHandler := handlers.NewLocalAuthHandler(jwtAuth)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:        "SlideHub v1.0",
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		BodyLimit:      10 * 1024 * 1024, // 10MB - documents with many slides
		ReadBufferSize: 16384,            // 16KB for request headers (privacy browsers send extra headers)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("slidehub")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Load rate limiting configuration
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.WebSocketMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard origins
	allowCredentials := allowedOrigins != "*"

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowCredentials,
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	// Global API rate limiter - first line of DDoS defense
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Health check
	app.Get("/health", healthHandler.Handle)

	// Token refresh for the local identity provider
	app.Post("/api/auth/refresh", authHandler.RefreshToken)

	// Collaboration WebSocket route (requires auth)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			c.Locals("client_ip", c.IP())
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	wsConnectionLimiter := middleware.WebSocketRateLimiter(rateLimitConfig)

	// WebSocket config with allowed origins (same as CORS config)
	wsConfig := websocket.Config{
		Origins: cfg.AllowedOrigins,
	}

	app.Use("/ws/collab", wsConnectionLimiter)
	app.Use("/ws/collab", middleware.LocalAuthMiddleware(jwtAuth))
	app.Get("/ws/collab", websocket.New(collabWSHandler.Handle, wsConfig))

	// Initialize background jobs
	jobScheduler := jobs.NewJobScheduler()

	// Register snapshot retention job (runs daily at 2 AM UTC)
	retentionJob := jobs.NewSnapshotRetentionJob(snapshotStore, cfg.SnapshotRetention)
	jobScheduler.Register("snapshot_retention", retentionJob)

	jobScheduler.Start()

	// Start server
	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("🔗 Collaboration endpoint: ws://localhost:%s/ws/collab", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Println("🕐 Background jobs: snapshot retention (daily 2 AM UTC)")

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Stop background jobs
		jobScheduler.Stop()

		// Close Redis
		if redisService != nil {
			if err := redisService.Close(); err != nil {
				log.Printf("⚠️ Error closing Redis: %v", err)
			}
		}

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// changeChannelOrNil keeps the session store's publisher a true nil
// interface when Redis is unavailable (a typed nil would dodge the
// store's nil check)
func changeChannelOrNil(c *services.ChangeChannelService) services.ChangePublisher {
	if c == nil {
		return nil
	}
	return c
}
