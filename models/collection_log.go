package models

import "time"

// 采集日志状态
const (
	LogStatusRunning = "running"
	LogStatusSuccess = "success"
	LogStatusPartial = "partial"
	LogStatusFailed  = "failed"
)

// CollectionLog 采集日志模型
type CollectionLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ConfigID       uint      `gorm:"index" json:"config_id"`
	ComeKey        string    `gorm:"size:50;index" json:"come_key"`
	Resume         bool      `json:"resume"`
	PageLimit      int       `json:"page_limit"`
	StartPage      int       `json:"start_page"`
	EndPage        int       `json:"end_page"`
	TotalPages     int       `json:"total_pages"`
	TotalRecords   int       `json:"total_records"`
	PagesProcessed int       `json:"pages_processed"`
	PagesSkipped   int       `json:"pages_skipped"`
	SuccessCount   int       `json:"success_count"`
	ErrorCount     int       `json:"error_count"`
	Duration       string    `gorm:"size:100" json:"duration"`
	StartTime      time.Time `gorm:"index" json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `gorm:"size:20;index" json:"status"`
	Message        string    `gorm:"type:text" json:"message"`
}

// TableName 指定表名
func (CollectionLog) TableName() string {
	return "collection_logs"
}
