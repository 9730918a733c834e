package handles

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"vodcaiji/models"
	"vodcaiji/utils"
)

// VideoHandler 视频查询接口
type VideoHandler struct {
	db *gorm.DB
}

// NewVideoHandler 创建视频查询处理器
func NewVideoHandler(db *gorm.DB) *VideoHandler {
	return &VideoHandler{db: db}
}

// GetVideos 获取视频列表
// GET /api/videos?page=1&page_size=20&come_key=mt&type_id=5&keyword=xx
func (h *VideoHandler) GetVideos(c *gin.Context) {
	// 获取分页参数
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.Video{})

	if comeKey := c.Query("come_key"); comeKey != "" {
		query = query.Where("come_key = ?", comeKey)
	}
	if typeID, err := strconv.Atoi(c.Query("type_id")); err == nil {
		query = query.Where("type_id = ?", typeID)
	}
	if keyword := c.Query("keyword"); keyword != "" {
		query = query.Where("video_title LIKE ?", "%"+keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	var videos []models.Video
	offset := (page - 1) * pageSize
	if err := query.Order("sort DESC, updated_at DESC").Limit(pageSize).Offset(offset).Find(&videos).Error; err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.Success(c, gin.H{
		"list":      videos,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetVideoByID 获取单个视频详情，按 id 或 caiji_key 查询
// GET /api/videos/detail?id=1 或 ?caiji_key=mt_101
func (h *VideoHandler) GetVideoByID(c *gin.Context) {
	id := c.Query("id")
	caijiKey := c.Query("caiji_key")

	if id == "" && caijiKey == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "ID参数缺失")
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var video models.Video
	var err error
	if id != "" {
		err = db.First(&video, id).Error
	} else {
		err = db.Where("caiji_key = ?", caijiKey).First(&video).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.ErrorResponse(c, http.StatusNotFound, "视频不存在")
		return
	}
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	episodes := ParsePlayURLs(video.PlayInfo)
	utils.Success(c, gin.H{
		"video":         video,
		"episodes":      episodes,
		"episode_count": len(episodes),
	})
}

// GetVideoStats 获取视频统计信息
func (h *VideoHandler) GetVideoStats(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())

	var totalCount int64
	if err := db.Model(&models.Video{}).Count(&totalCount).Error; err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	// 按来源统计
	var sourceCounts []struct {
		ComeKey string `json:"come_key"`
		Count   int64  `json:"count"`
	}
	if err := db.Model(&models.Video{}).
		Select("come_key, COUNT(*) as count").
		Group("come_key").
		Scan(&sourceCounts).Error; err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	// 按分类统计
	var typeCounts []struct {
		TypeID int   `json:"type_id"`
		Count  int64 `json:"count"`
	}
	if err := db.Model(&models.Video{}).
		Select("type_id, COUNT(*) as count").
		Group("type_id").
		Order("count DESC").
		Limit(20).
		Scan(&typeCounts).Error; err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.Success(c, gin.H{
		"total":         totalCount,
		"source_counts": sourceCounts,
		"type_counts":   typeCounts,
	})
}
