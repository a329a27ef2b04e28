package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/shepherdhq/shepherd-backend/internal/db"
	"github.com/shepherdhq/shepherd-backend/internal/handlers"
	"github.com/shepherdhq/shepherd-backend/internal/logger"
	"github.com/shepherdhq/shepherd-backend/internal/observability"
	"github.com/shepherdhq/shepherd-backend/internal/repos"
	"github.com/shepherdhq/shepherd-backend/internal/server"
	"github.com/shepherdhq/shepherd-backend/internal/services"
	"github.com/shepherdhq/shepherd-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	shutdownTracing := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "shepherd-backend",
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	if shutdownTracing != nil {
		defer func() { _ = shutdownTracing(ctx) }()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	userRepo := repos.NewUserRepo(thePG, log)
	discipleshipRepo := repos.NewDiscipleshipRepo(thePG, log)

	// Network cache: redis when configured, in-process otherwise
	var cache services.NetworkCache
	if utils.GetEnv("REDIS_ADDR", "", log) != "" {
		cache, err = services.NewRedisNetworkCache(log)
		if err != nil {
			log.Warn("Redis cache init failed, falling back to in-memory cache", "error", err)
			cache = services.NewMemoryNetworkCache()
		}
	} else {
		cache = services.NewMemoryNetworkCache()
	}

	// Services
	log.Info("Setting up services...")
	propagationService := services.NewPropagationService(thePG, log, userRepo, discipleshipRepo, cache)
	discipleshipService := services.NewDiscipleshipService(thePG, log, userRepo, discipleshipRepo, cache, propagationService)
	networkService := services.NewNetworkService(thePG, log, userRepo, discipleshipRepo, cache)
	maintenanceService := services.NewMaintenanceService(thePG, log, userRepo, discipleshipRepo, cache)

	// Router
	router := server.NewRouter(server.RouterConfig{
		ServiceName:         "shepherd-backend",
		AllowOrigins:        splitOrigins(utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)),
		DiscipleshipHandler: handlers.NewDiscipleshipHandler(discipleshipService),
		NetworkHandler:      handlers.NewNetworkHandler(networkService),
		MaintenanceHandler:  handlers.NewMaintenanceHandler(maintenanceService, propagationService),
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server stopped", "error", err)
	}
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
