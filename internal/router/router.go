package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/peerspark/backend/config"
	"github.com/peerspark/backend/internal/handler"
)

func Setup(
	cfg *config.Config,
	runHandler *handler.RunHandler,
	configHandler *handler.ConfigHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	// 运行快照带全部单元详情，体积可观
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	api := r.Group("/api")
	{
		runs := api.Group("/runs")
		{
			runs.POST("", runHandler.Create)
			runs.GET("", runHandler.List)
			runs.GET("/:id", runHandler.Get)
			runs.POST("/:id/units/:index/retry", runHandler.RetryUnit)
		}

		generation := api.Group("/generation")
		{
			generation.GET("/status", runHandler.QueueStatus)
		}

		api.GET("/config", configHandler.Get)
	}

	return r
}
