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
	flag.BoolVar(&dryRun, "dry-run", false, "report primary_user_id changes without persisting them")
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

	result, err := maintenance.RebuildAllPrimaryUsers(context.Background(), dryRun)
	if err != nil {
		fmt.Printf("rebuild failed: %v\n", err)
		os.Exit(1)
	}
	prefix := ""
	if dryRun {
		prefix = "[dry-run] "
	}
	fmt.Printf("%supdated: %d, unchanged: %d, skipped: %d\n", prefix, result.Updated, result.Unchanged, result.Skipped)
}
