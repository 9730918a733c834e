package handles

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"vodcaiji/models"
	"vodcaiji/utils"
)

// CaijiRunner 采集服务，由 services.CaijiService 实现
// Start 同步加锁后在后台运行，已有采集时返回 models.ErrRunLocked
type CaijiRunner interface {
	Start(ctx context.Context, configID uint, opts models.RunOptions) error
	Status() models.RunStatus
	Checkpoint(ctx context.Context, configID uint) (models.Checkpoint, error)
	CollectionLogs(ctx context.Context, limit int) ([]models.CollectionLog, error)
}

// CaijiHandler 采集管理接口
type CaijiHandler struct {
	ctx    context.Context // 服务生命周期，关闭时取消后台采集
	runner CaijiRunner
	logger *log.Logger
}

// NewCaijiHandler 创建采集管理处理器
func NewCaijiHandler(ctx context.Context, runner CaijiRunner, logger *log.Logger) *CaijiHandler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &CaijiHandler{ctx: ctx, runner: runner, logger: logger}
}

// StartCollect 异步触发采集
// POST /api/admin/caiji
// Body: {"config_id": 1, "page_limit": 10, "resume": true, "clear_before_start": false}
func (h *CaijiHandler) StartCollect(c *gin.Context) {
	var req struct {
		ConfigID uint `json:"config_id" binding:"required"`
		models.RunOptions
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "无效的请求数据: "+err.Error())
		return
	}
	if req.PageLimit < 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "page_limit 不能小于0")
		return
	}

	// 请求结束后继续运行，使用服务生命周期的 ctx
	err := h.runner.Start(h.ctx, req.ConfigID, req.RunOptions)
	switch {
	case errors.Is(err, models.ErrRunLocked):
		utils.ErrorResponse(c, http.StatusConflict, "已有采集任务在运行")
		return
	case errors.Is(err, models.ErrConfigNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, err.Error())
		return
	case err != nil:
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.WithFields(log.Fields{
		"config_id": req.ConfigID,
		"resume":    req.Resume,
	}).Info("后台采集已启动")

	utils.Success(c, gin.H{
		"config_id":  req.ConfigID,
		"options":    req.RunOptions,
		"started_at": time.Now(),
	})
}

// GetStatus 当前采集状态
// GET /api/admin/caiji/status
func (h *CaijiHandler) GetStatus(c *gin.Context) {
	utils.Success(c, h.runner.Status())
}

// GetCheckpoint 采集进度
// GET /api/admin/caiji/state?config_id=1
func (h *CaijiHandler) GetCheckpoint(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("config_id"), 10, 64)
	if err != nil || id == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "config_id参数无效")
		return
	}

	cp, err := h.runner.Checkpoint(c.Request.Context(), uint(id))
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	utils.Success(c, cp)
}

// GetCollectionLogs 获取采集日志
// GET /api/admin/collection-logs?limit=50
func (h *CaijiHandler) GetCollectionLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.runner.CollectionLogs(c.Request.Context(), limit)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Success(c, logs)
}
