package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fieldstone/opportunity-engine/internal/api"
	"github.com/fieldstone/opportunity-engine/internal/database"
	"github.com/fieldstone/opportunity-engine/internal/distlock"
	"github.com/fieldstone/opportunity-engine/internal/middleware"
	"github.com/fieldstone/opportunity-engine/internal/repository"
	"github.com/fieldstone/opportunity-engine/internal/scheduler"
	"github.com/fieldstone/opportunity-engine/internal/services"
	"github.com/fieldstone/opportunity-engine/pkg/config"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.New()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Per-account recompute locking: Redis when configured, otherwise
	// Postgres advisory locks.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("Invalid REDIS_URL:", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}
	locker := distlock.New(rdb, db.DB)

	// Create centralized services
	svcs := services.NewServices(db.DB, cfg, locker)

	// Start the maintenance scheduler
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		tenants := repository.NewTenantRepository(db.DB)
		sched = scheduler.New(svcs, tenants, cfg)
		if err := sched.Start(); err != nil {
			log.Fatal("Failed to start scheduler:", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sched.Stop(ctx)
		}()
	}

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := gin.New()

	// Add security middleware
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(cfg))
	r.Use(middleware.InputValidationMiddleware())

	// Add rate limiting in production
	if cfg.EnableRateLimit {
		r.Use(middleware.RateLimitingMiddleware())
	}

	// Add recovery middleware
	r.Use(gin.Recovery())

	// Setup API routes
	api.SetupRoutes(r, db, cfg, svcs, sched)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
