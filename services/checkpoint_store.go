package services

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vodcaiji/models"
)

// CheckpointStore 采集进度存取，进度以 JSON 保存在配置记录上
type CheckpointStore struct {
	db     *gorm.DB
	logger *log.Logger
}

// NewCheckpointStore 创建进度存储
func NewCheckpointStore(db *gorm.DB, logger *log.Logger) *CheckpointStore {
	return &CheckpointStore{db: db, logger: logger}
}

// Load 读取进度；不存在或无法解析时从第一页开始
func (s *CheckpointStore) Load(ctx context.Context, run models.CollectionRun) models.Checkpoint {
	var cfg models.CaijiConfig
	err := s.db.WithContext(ctx).Select("id", "caiji_state_info").First(&cfg, run.ConfigID).Error
	if err != nil {
		s.logger.WithError(err).WithField("config_id", run.ConfigID).Warn("读取采集进度失败，从第一页开始")
		return models.NewCheckpoint()
	}
	return ParseCheckpoint(cfg.CaijiStateInfo)
}

// Save 覆盖保存进度
func (s *CheckpointStore) Save(ctx context.Context, run models.CollectionRun, cp models.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Model(&models.CaijiConfig{}).
		Where("id = ?", run.ConfigID).
		Update("caiji_state_info", string(data))
	if result.Error != nil {
		return fmt.Errorf("保存采集进度失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id=%d", ErrConfigNotFound, run.ConfigID)
	}
	return nil
}

// ParseCheckpoint 解析进度，失败时返回默认进度
func ParseCheckpoint(raw string) models.Checkpoint {
	if raw == "" {
		return models.NewCheckpoint()
	}
	var cp models.Checkpoint
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return models.NewCheckpoint()
	}
	if cp.CurrentPage < 1 {
		cp.CurrentPage = 1
	}
	return cp
}
