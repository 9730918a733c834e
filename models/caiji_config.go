package models

import "time"

// CaijiConfig 采集配置（每个资源站一条）
type CaijiConfig struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name    string `gorm:"size:200;not null" json:"name"`
	ComeKey string `gorm:"size:50;uniqueIndex;not null" json:"come_key"`
	BaseURL string `gorm:"size:500;not null" json:"base_url"`
	Enabled bool   `gorm:"not null" json:"enabled"`

	// 资源站分类ID -> 本地分类ID，JSON对象，如 {"2":5}
	TypeIDTranslate string `gorm:"type:text" json:"type_id_translate"`
	// 采集进度，JSON格式的 Checkpoint，可为空
	CaijiStateInfo string `gorm:"type:text" json:"caiji_state_info"`
}

// TableName 指定表名
func (CaijiConfig) TableName() string {
	return "caiji_configs"
}
