package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vodcaiji/handles"
	"vodcaiji/models"
	"vodcaiji/utils"
)

// ErrMissingRemoteID 详情缺少 vod_id
var ErrMissingRemoteID = errors.New("record has no vod_id")

// 重复采集时覆盖的字段，sort / play_num 只在新增时写入
var upsertColumns = []string{
	"come_key",
	"video_title",
	"video_image",
	"video_desc",
	"play_info",
	"type_id",
	"updated_at",
	"collected_at",
}

// VideoUpserter 按 caiji_key 新增或更新视频
type VideoUpserter struct {
	db     *gorm.DB
	logger *log.Logger
	now    func() time.Time
}

// NewVideoUpserter 创建入库服务
func NewVideoUpserter(db *gorm.DB, logger *log.Logger) *VideoUpserter {
	return &VideoUpserter{db: db, logger: logger, now: time.Now}
}

// CaijiKey 去重键
func CaijiKey(comeKey, remoteID string) string {
	return comeKey + "_" + remoteID
}

// BuildVideo 将详情转换为入库结构
func BuildVideo(record handles.DetailRecord, run models.CollectionRun, now time.Time) (models.Video, error) {
	remoteID := record.RemoteID()
	if remoteID == "" {
		return models.Video{}, ErrMissingRemoteID
	}

	typeID, _ := run.LocalTypeID(record.RemoteTypeID())

	return models.Video{
		ComeKey:     run.ComeKey,
		CaijiKey:    CaijiKey(run.ComeKey, remoteID),
		VideoTitle:  record.Title(),
		VideoImage:  record.Pic(),
		VideoDesc:   utils.StripMarkup(record.Description()),
		PlayInfo:    record.PlayURL(),
		TypeID:      typeID,
		Sort:        0,
		PlayNum:     0,
		CollectedAt: now,
	}, nil
}

// Save 单条入库，使用 ON CONFLICT(caiji_key) 保证原子性
func (u *VideoUpserter) Save(ctx context.Context, record handles.DetailRecord, run models.CollectionRun) error {
	video, err := BuildVideo(record, run, u.now())
	if err != nil {
		return err
	}

	if _, mapped := run.LocalTypeID(record.RemoteTypeID()); !mapped {
		u.logger.WithFields(log.Fields{
			"caiji_key": video.CaijiKey,
			"type_id":   record.RemoteTypeID(),
		}).Debug("未映射的分类，使用默认分类")
	}

	err = u.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "caiji_key"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&video).Error
	if err != nil {
		return fmt.Errorf("保存视频 %s 失败: %w", video.CaijiKey, err)
	}
	return nil
}

// ClearVideos 删除某个资源站的全部视频
func ClearVideos(ctx context.Context, db *gorm.DB, comeKey string) (int64, error) {
	result := db.WithContext(ctx).Where("come_key = ?", comeKey).Delete(&models.Video{})
	return result.RowsAffected, result.Error
}
