package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vodcaiji/config"
	"vodcaiji/models"
)

// ErrConfigNotFound 采集配置不存在
var ErrConfigNotFound = models.ErrConfigNotFound

// ConfigStore 读取 caiji_configs 表
type ConfigStore struct {
	db *gorm.DB
}

// NewConfigStore 创建配置读取服务
func NewConfigStore(db *gorm.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// Get 按ID读取配置
func (s *ConfigStore) Get(ctx context.Context, id uint) (*models.CaijiConfig, error) {
	var cfg models.CaijiConfig
	err := s.db.WithContext(ctx).First(&cfg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id=%d", ErrConfigNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("读取采集配置失败: %w", err)
	}
	return &cfg, nil
}

// List 所有配置
func (s *ConfigStore) List(ctx context.Context) ([]models.CaijiConfig, error) {
	var list []models.CaijiConfig
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// LoadRun 生成本次运行的配置快照
func (s *ConfigStore) LoadRun(ctx context.Context, id uint, pageLimit int) (models.CollectionRun, error) {
	cfg, err := s.Get(ctx, id)
	if err != nil {
		return models.CollectionRun{}, err
	}

	typeMap, err := ParseTypeIDTranslate(cfg.TypeIDTranslate)
	if err != nil {
		return models.CollectionRun{}, fmt.Errorf("配置 %d 的分类映射无效: %w", id, err)
	}
	if pageLimit < 0 {
		pageLimit = 0
	}

	return models.CollectionRun{
		ConfigID:  cfg.ID,
		ComeKey:   cfg.ComeKey,
		BaseURL:   cfg.BaseURL,
		TypeIDMap: typeMap,
		PageLimit: pageLimit,
	}, nil
}

// ParseTypeIDTranslate 解析 {"2":5,"3":6}，空字符串返回空映射
func ParseTypeIDTranslate(raw string) (map[string]int, error) {
	out := make(map[string]int)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]int)
	}
	return out, nil
}

// SyncSources 将配置文件中的资源站同步到数据库，已存在时更新，不覆盖采集进度
func (s *ConfigStore) SyncSources(ctx context.Context, sources []config.SourceConfig) error {
	for _, src := range sources {
		if src.ComeKey == "" || src.BaseURL == "" {
			continue
		}
		typeMap := src.TypeIDTranslate
		if typeMap == nil {
			typeMap = map[string]int{}
		}
		translate, err := json.Marshal(typeMap)
		if err != nil {
			return err
		}
		row := models.CaijiConfig{
			Name:            src.Name,
			ComeKey:         src.ComeKey,
			BaseURL:         src.BaseURL,
			Enabled:         src.Enabled,
			TypeIDTranslate: string(translate),
		}
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "come_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "base_url", "enabled", "type_id_translate", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("同步资源站 %s 失败: %w", src.ComeKey, err)
		}
	}
	return nil
}
