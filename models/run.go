package models

import "time"

// DefaultTypeID 资源站分类未映射时使用的本地分类
const DefaultTypeID = 1

// CollectionRun 单次采集的配置快照，运行期间只读
type CollectionRun struct {
	ConfigID  uint
	ComeKey   string
	BaseURL   string
	TypeIDMap map[string]int
	PageLimit int // 0 表示不限制
}

// LocalTypeID 将资源站分类ID映射为本地分类ID
func (r CollectionRun) LocalTypeID(remoteTypeID string) (int, bool) {
	if id, ok := r.TypeIDMap[remoteTypeID]; ok {
		return id, true
	}
	return DefaultTypeID, false
}

// Checkpoint 采集进度，保存在 CaijiConfig.CaijiStateInfo 中
type Checkpoint struct {
	CurrentPage   int       `json:"current_page"` // 下一个要采集的页码
	TotalPage     int       `json:"total_page"`
	LastTime      time.Time `json:"last_time"`
	TotalInserted int       `json:"total_inserted"`
	TotalFailed   int       `json:"total_failed"`
}

// NewCheckpoint 返回从第一页开始的进度
func NewCheckpoint() Checkpoint {
	return Checkpoint{CurrentPage: 1}
}

// RunStatistics 单次运行的统计，每次运行重新计数
type RunStatistics struct {
	TotalInserted  int `json:"total_inserted"`
	TotalFailed    int `json:"total_failed"`
	PagesProcessed int `json:"pages_processed"`
	PagesSkipped   int `json:"pages_skipped"`
}

// Add 合并另一份统计
func (s *RunStatistics) Add(o RunStatistics) {
	s.TotalInserted += o.TotalInserted
	s.TotalFailed += o.TotalFailed
	s.PagesProcessed += o.PagesProcessed
	s.PagesSkipped += o.PagesSkipped
}

// RunOptions 调用参数
type RunOptions struct {
	PageLimit        int  `json:"page_limit"`
	Resume           bool `json:"resume"`
	ClearBeforeStart bool `json:"clear_before_start"`
}

// RunReport 运行结束后的报告
type RunReport struct {
	ComeKey      string        `json:"come_key"`
	StartPage    int           `json:"start_page"`
	EndPage      int           `json:"end_page"`
	TotalPages   int           `json:"total_pages"`
	TotalRecords int           `json:"total_records"`
	Stats        RunStatistics `json:"stats"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Elapsed      time.Duration `json:"elapsed"`
}

// RunStatus 当前运行状态，供管理接口查询
type RunStatus struct {
	Running   bool      `json:"running"`
	ConfigID  uint      `json:"config_id,omitempty"`
	ComeKey   string    `json:"come_key,omitempty"`
	State     string    `json:"state,omitempty"`
	Page      int       `json:"page,omitempty"`
	EndPage   int       `json:"end_page,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}
