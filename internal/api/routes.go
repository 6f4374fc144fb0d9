package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fieldstone/opportunity-engine/internal/auth"
	"github.com/fieldstone/opportunity-engine/internal/database"
	"github.com/fieldstone/opportunity-engine/internal/scheduler"
	"github.com/fieldstone/opportunity-engine/internal/services"
	"github.com/fieldstone/opportunity-engine/pkg/config"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, db *database.DB, cfg *config.Config, svcs *services.Services, sched *scheduler.Scheduler) {
	authHandler := NewAuthHandler(svcs.Auth)
	accountHandler := NewAccountHandler(svcs.Recompute)
	programHandler := NewProgramHandler(svcs.Lifecycle)
	profileHandler := NewProfileHandler(svcs.Profiles)
	adminHandler := NewAdminHandler(db, sched)

	// Public routes
	public := r.Group("/api/v1")
	{
		public.POST("/auth/login", authHandler.Login)
		public.POST("/auth/register", authHandler.Register)
		public.POST("/auth/refresh", authHandler.RefreshToken)
		public.POST("/auth/logout", authHandler.Logout)
		public.GET("/health", adminHandler.Health)
	}

	// Protected routes
	protected := r.Group("/api/v1")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	protected.Use(auth.CSRFMiddleware())
	{
		// Account metrics endpoints
		protected.POST("/accounts/:id/recompute", accountHandler.RecomputeAccount)
		protected.POST("/accounts/recompute-all", accountHandler.RecomputeAll)
		protected.GET("/accounts/:id/metrics", accountHandler.GetMetrics)
		protected.GET("/accounts/ranking", accountHandler.GetRanking)

		// Profile endpoints
		protected.GET("/profiles", profileHandler.ListProfiles)
		protected.GET("/profiles/:id", profileHandler.GetProfile)
		protected.POST("/profiles", profileHandler.CreateProfile)
		protected.PUT("/profiles/:id", profileHandler.UpdateProfile)
		protected.DELETE("/profiles/:id", profileHandler.DeleteProfile)
		protected.POST("/profiles/:id/approve", profileHandler.ApproveProfile)
		protected.PUT("/profiles/:id/categories", profileHandler.ReplaceCategories)

		// Category taxonomy endpoints
		protected.GET("/categories", profileHandler.ListCategories)
		protected.POST("/categories", profileHandler.CreateCategory)

		// Program lifecycle endpoints
		protected.POST("/programs", programHandler.Enroll)
		protected.GET("/programs", programHandler.ListPrograms)
		protected.GET("/programs/:id", programHandler.GetProgram)
		protected.GET("/programs/:id/snapshots", programHandler.GetSnapshots)
		protected.POST("/programs/:id/transition", programHandler.Transition)
		protected.POST("/programs/evaluate", programHandler.Evaluate)
		protected.POST("/programs/snapshots", programHandler.GenerateSnapshots)

		// Rev-share tier endpoints
		protected.GET("/tiers", programHandler.GetTiers)
		protected.PUT("/tiers", programHandler.ReplaceTiers)

		// Operational endpoints
		protected.GET("/scheduler/status", adminHandler.SchedulerStatus)
		protected.POST("/scheduler/jobs/:name/run", adminHandler.RunJob)
	}
}
