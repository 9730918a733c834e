package handles

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"vodcaiji/models"
	"vodcaiji/utils"
)

// ConfigHandler 采集配置管理
type ConfigHandler struct {
	db *gorm.DB
}

// NewConfigHandler 创建采集配置处理器
func NewConfigHandler(db *gorm.DB) *ConfigHandler {
	return &ConfigHandler{db: db}
}

// configRequest 创建/更新请求，不允许直接写入采集进度
type configRequest struct {
	Name            string         `json:"name" binding:"required"`
	ComeKey         string         `json:"come_key" binding:"required"`
	BaseURL         string         `json:"base_url" binding:"required"`
	Enabled         *bool          `json:"enabled"`
	TypeIDTranslate map[string]int `json:"type_id_translate"`
}

func (r configRequest) apply(cfg *models.CaijiConfig) error {
	cfg.Name = strings.TrimSpace(r.Name)
	cfg.ComeKey = strings.TrimSpace(r.ComeKey)
	cfg.BaseURL = strings.TrimSpace(r.BaseURL)
	if r.Enabled != nil {
		cfg.Enabled = *r.Enabled
	}
	if r.TypeIDTranslate == nil {
		r.TypeIDTranslate = map[string]int{}
	}
	raw, err := json.Marshal(r.TypeIDTranslate)
	if err != nil {
		return err
	}
	cfg.TypeIDTranslate = string(raw)
	return nil
}

// GetConfigs 获取采集配置列表（不返回进度内容）
func (h *ConfigHandler) GetConfigs(c *gin.Context) {
	var configs []models.CaijiConfig
	err := h.db.WithContext(c.Request.Context()).
		Omit("caiji_state_info").
		Order("id ASC").
		Find(&configs).Error
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Success(c, configs)
}

// CreateConfig 创建采集配置
func (h *ConfigHandler) CreateConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "无效的请求数据")
		return
	}

	cfg := models.CaijiConfig{Enabled: true}
	if err := req.apply(&cfg); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&cfg).Error; err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Response(c, http.StatusOK, "创建成功", cfg)
}

// UpdateConfig 更新采集配置，保留采集进度
func (h *ConfigHandler) UpdateConfig(c *gin.Context) {
	cfg, ok := h.findByQuery(c)
	if !ok {
		return
	}

	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "无效的请求数据")
		return
	}
	if err := req.apply(cfg); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.db.WithContext(c.Request.Context()).Model(cfg).
		Select("name", "come_key", "base_url", "enabled", "type_id_translate").
		Updates(cfg).Error
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Response(c, http.StatusOK, "更新成功", cfg)
}

// DeleteConfig 删除采集配置，已采集的视频不受影响
func (h *ConfigHandler) DeleteConfig(c *gin.Context) {
	cfg, ok := h.findByQuery(c)
	if !ok {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Delete(cfg).Error; err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Response(c, http.StatusOK, "删除成功", nil)
}

// ResetCheckpoint 清除采集进度，下次续采从第一页开始
func (h *ConfigHandler) ResetCheckpoint(c *gin.Context) {
	cfg, ok := h.findByQuery(c)
	if !ok {
		return
	}
	err := h.db.WithContext(c.Request.Context()).Model(cfg).
		Update("caiji_state_info", "").Error
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Response(c, http.StatusOK, "进度已重置", nil)
}

func (h *ConfigHandler) findByQuery(c *gin.Context) (*models.CaijiConfig, bool) {
	id, err := strconv.ParseUint(c.Query("id"), 10, 64)
	if err != nil || id == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "ID参数缺失")
		return nil, false
	}

	var cfg models.CaijiConfig
	err = h.db.WithContext(c.Request.Context()).First(&cfg, uint(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.ErrorResponse(c, http.StatusNotFound, "采集配置不存在")
		return nil, false
	}
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return &cfg, true
}
