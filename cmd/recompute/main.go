// Command recompute runs a one-off metrics recompute from the shell, for
// operators and cron environments that do not run the in-process scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fieldstone/opportunity-engine/internal/database"
	"github.com/fieldstone/opportunity-engine/internal/distlock"
	"github.com/fieldstone/opportunity-engine/internal/repository"
	"github.com/fieldstone/opportunity-engine/internal/services"
	"github.com/fieldstone/opportunity-engine/pkg/config"
)

func main() {
	tenantFlag := flag.String("tenant", "", "tenant ID (required unless -all-tenants)")
	accountFlag := flag.String("account", "", "recompute a single account")
	allTenants := flag.Bool("all-tenants", false, "recompute every active tenant")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.New()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("Invalid REDIS_URL:", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}

	svcs := services.NewServices(db.DB, cfg, distlock.New(rdb, db.DB))
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *allTenants:
		tenants, err := repository.NewTenantRepository(db.DB).ListActive(ctx)
		if err != nil {
			log.Fatal("Failed to list tenants:", err)
		}
		for _, tenant := range tenants {
			runTenant(ctx, svcs, tenant.ID)
		}
	case *tenantFlag != "":
		tenantID, err := uuid.Parse(*tenantFlag)
		if err != nil {
			log.Fatal("Invalid tenant ID:", err)
		}
		if *accountFlag != "" {
			accountID, err := uuid.Parse(*accountFlag)
			if err != nil {
				log.Fatal("Invalid account ID:", err)
			}
			result, err := svcs.Recompute.RecomputeAccount(ctx, tenantID, accountID)
			if err != nil {
				log.Fatal("Recompute failed:", err)
			}
			fmt.Printf("account %s: score %.2f, %d gaps\n",
				accountID, result.Metrics.OpportunityScore, len(result.Gaps))
			return
		}
		runTenant(ctx, svcs, tenantID)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runTenant(ctx context.Context, svcs *services.Services, tenantID uuid.UUID) {
	batch, err := svcs.Recompute.RecomputeAllAccounts(ctx, tenantID)
	if err != nil {
		log.Printf("tenant %s: batch failed: %v", tenantID, err)
		return
	}
	fmt.Printf("tenant %s: %d processed, %d failed\n", tenantID, batch.Processed, batch.Failed)
	for _, msg := range batch.Errors {
		log.Printf("tenant %s: %s", tenantID, msg)
	}
}
