package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/shepherdhq/shepherd-backend/internal/handlers"
)

type RouterConfig struct {
	ServiceName         string
	AllowOrigins        []string
	DiscipleshipHandler *handlers.DiscipleshipHandler
	NetworkHandler      *handlers.NetworkHandler
	MaintenanceHandler  *handlers.MaintenanceHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/discipleships/assign", cfg.DiscipleshipHandler.AssignMentor)
		api.POST("/discipleships/end", cfg.DiscipleshipHandler.EndMentorship)

		api.GET("/network/:userID/ids", cfg.NetworkHandler.UserIDs)
		api.GET("/network/:userID/tree", cfg.NetworkHandler.Tree)
		api.GET("/network/:userID/stats", cfg.NetworkHandler.Stats)

		api.POST("/users/:userID/primary-leader", cfg.MaintenanceHandler.SetPrimaryLeader)
		api.POST("/users/:userID/primary-user", cfg.MaintenanceHandler.SetPrimaryUser)

		admin := api.Group("/admin")
		{
			admin.POST("/dedupe-mentors", cfg.MaintenanceHandler.DedupeMentors)
			admin.POST("/rebuild-primary-users", cfg.MaintenanceHandler.RebuildPrimaryUsers)
		}
	}

	return router
}
