package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/shepherdhq/shepherd-backend/internal/db"
	"github.com/shepherdhq/shepherd-backend/internal/logger"
	"github.com/shepherdhq/shepherd-backend/internal/repos"
	"github.com/shepherdhq/shepherd-backend/internal/services"
	"github.com/shepherdhq/shepherd-backend/internal/utils"
)

func main() {
	var dryRun bool
	flag.BoolVar(&dryRun, "dry-run", false, "report duplicate active mentors without deactivating them")
	flag.Parse()

	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		fmt.Printf("init postgres: %v\n", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	userRepo := repos.NewUserRepo(thePG, log)
	discipleshipRepo := repos.NewDiscipleshipRepo(thePG, log)

	var cache services.NetworkCache
	if utils.GetEnv("REDIS_ADDR", "", log) != "" {
		if cache, err = services.NewRedisNetworkCache(log); err != nil {
			fmt.Printf("init redis cache: %v\n", err)
			os.Exit(1)
		}
	} else {
		cache = services.NewMemoryNetworkCache()
	}
	maintenance := services.NewMaintenanceService(thePG, log, userRepo, discipleshipRepo, cache)

	result, err := maintenance.DedupeActiveMentors(context.Background(), dryRun)
	if err != nil {
		fmt.Printf("dedupe failed: %v\n", err)
		os.Exit(1)
	}
	if dryRun {
		fmt.Printf("[dry-run] disciples with duplicates: %d, edges that would be deactivated: %d\n", result.Processed, result.Removed)
		return
	}
	fmt.Printf("disciples processed: %d, duplicate edges deactivated: %d\n", result.Processed, result.Removed)
}
