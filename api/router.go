package api

import (
	"vidscore/config"
	"vidscore/task"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRouter(cfg *config.Config, store *task.Store, jobs Jobs, uploader Uploader, log *zap.Logger) *gin.Engine {
	r := gin.Default()
	h := NewHandler(cfg, store, jobs, uploader, log)

	// Liveness probe, outside auth.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/upload", h.handleUpload)
		v1.POST("/music-callback", h.handleMusicCallback)
		v1.GET("/status/:taskId", h.handleStatus)
		v1.POST("/finalize", h.handleFinalize)
		v1.GET("/tasks", h.handleListTasks)
	}
	return r
}
