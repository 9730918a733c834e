package models

import "errors"

// 采集入口的公共错误，handles 与 services 共用
var (
	// ErrConfigNotFound 采集配置不存在
	ErrConfigNotFound = errors.New("caiji config not found")
	// ErrRunLocked 已有采集在运行
	ErrRunLocked = errors.New("collection already running")
)
