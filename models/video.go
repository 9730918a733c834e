package models

import (
	"time"
)

// Video 采集入库的视频
type Video struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 来源信息
	ComeKey  string `gorm:"size:50;index;not null" json:"come_key"`         // 资源站标识
	CaijiKey string `gorm:"size:100;uniqueIndex;not null" json:"caiji_key"` // 去重键: 资源站标识_资源站视频ID

	// 基本信息
	VideoTitle string `gorm:"size:500;index" json:"video_title"`
	VideoImage string `gorm:"size:1000" json:"video_image"`
	VideoDesc  string `gorm:"type:text" json:"video_desc"` // 已去除HTML标签
	PlayInfo   string `gorm:"type:text" json:"play_info"`  // 原始 vod_play_url

	// 本地分类
	TypeID int `gorm:"index" json:"type_id"`

	// 排序与统计（仅在新增时初始化）
	Sort    int `gorm:"default:0" json:"sort"`
	PlayNum int `gorm:"default:0" json:"play_num"`

	CollectedAt time.Time `gorm:"index" json:"collected_at"`
}

// TableName 指定表名
func (Video) TableName() string {
	return "videos"
}
