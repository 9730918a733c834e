package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vodcaiji/handles"
	"vodcaiji/middleware"
)

// Deps 路由依赖
type Deps struct {
	Context    context.Context // 服务生命周期，后台采集随之取消
	DB         *gorm.DB
	Runner     handles.CaijiRunner
	Logger     *log.Logger
	AdminToken string
}

// SetupRoutes 设置路由
func SetupRoutes(r *gin.Engine, deps Deps) {
	videoHandler := handles.NewVideoHandler(deps.DB)
	caijiHandler := handles.NewCaijiHandler(deps.Context, deps.Runner, deps.Logger)
	configHandler := handles.NewConfigHandler(deps.DB)

	// ============ 公开API（无需认证）============
	public := r.Group("/api")
	{
		public.GET("/health", healthCheck)

		public.GET("/videos", videoHandler.GetVideos)
		public.GET("/videos/detail", videoHandler.GetVideoByID)
		public.GET("/videos/stats", videoHandler.GetVideoStats)

		public.GET("/configs", configHandler.GetConfigs)
	}

	// ============ 管理员API（需要认证）============
	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminAuth(deps.AdminToken))
	{
		admin.POST("/caiji", caijiHandler.StartCollect)
		admin.GET("/caiji/status", caijiHandler.GetStatus)
		admin.GET("/caiji/state", caijiHandler.GetCheckpoint)
		admin.GET("/collection-logs", caijiHandler.GetCollectionLogs)

		admin.POST("/configs", configHandler.CreateConfig)
		admin.PUT("/configs", configHandler.UpdateConfig)
		admin.DELETE("/configs", configHandler.DeleteConfig)
		admin.POST("/configs/reset", configHandler.ResetCheckpoint)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"message": "Server is running",
	})
}
