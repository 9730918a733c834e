package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodcaiji/handles"
	"vodcaiji/models"
)

func TestCaijiKey(t *testing.T) {
	assert.Equal(t, "mt_101", CaijiKey("mt", "101"))
}

func TestBuildVideo(t *testing.T) {
	run := models.CollectionRun{ComeKey: "mt", TypeIDMap: map[string]int{"2": 5}}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	record := handles.DetailRecord{
		"vod_id":       float64(101),
		"type_id":      float64(2),
		"vod_name":     "A",
		"vod_pic":      "https://img/a.jpg",
		"vod_content":  "<p>好看的&nbsp;剧</p>",
		"vod_play_url": "第1集$https://a/1.m3u8",
	}
	video, err := BuildVideo(record, run, now)
	require.NoError(t, err)
	assert.Equal(t, "mt_101", video.CaijiKey)
	assert.Equal(t, 5, video.TypeID)
	assert.Equal(t, "https://img/a.jpg", video.VideoImage)
	assert.Equal(t, "第1集$https://a/1.m3u8", video.PlayInfo)
	assert.NotContains(t, video.VideoDesc, "<p>")
	assert.Equal(t, now, video.CollectedAt)
	assert.Zero(t, video.Sort)
	assert.Zero(t, video.PlayNum)
}

// TestBuildVideo_Fallbacks 未映射分类与简介回退
func TestBuildVideo_Fallbacks(t *testing.T) {
	run := models.CollectionRun{ComeKey: "mt", TypeIDMap: map[string]int{"2": 5}}

	video, err := BuildVideo(handles.DetailRecord{
		"vod_id":      "7",
		"type_id":     "99",
		"vod_content": "",
		"vod_blurb":   "简介",
	}, run, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTypeID, video.TypeID)
	assert.Equal(t, "简介", video.VideoDesc)

	_, err = BuildVideo(handles.DetailRecord{"vod_name": "no id"}, run, time.Now())
	assert.True(t, errors.Is(err, ErrMissingRemoteID))
}

// TestVideoUpserter_Update 重复采集更新内容，保留 sort 与 play_num
func TestVideoUpserter_Update(t *testing.T) {
	db := openTestDB(t)
	u := NewVideoUpserter(db, quietLogger())
	run := models.CollectionRun{ComeKey: "mt"}
	ctx := context.Background()

	require.NoError(t, u.Save(ctx, handles.DetailRecord{"vod_id": "1", "vod_name": "旧标题"}, run))
	require.NoError(t, db.Model(&models.Video{}).Where("caiji_key = ?", "mt_1").
		Updates(map[string]interface{}{"sort": 3, "play_num": 9}).Error)

	require.NoError(t, u.Save(ctx, handles.DetailRecord{"vod_id": "1", "vod_name": "新标题"}, run))

	var videos []models.Video
	require.NoError(t, db.Find(&videos).Error)
	require.Len(t, videos, 1)
	assert.Equal(t, "新标题", videos[0].VideoTitle)
	assert.Equal(t, 3, videos[0].Sort)
	assert.Equal(t, 9, videos[0].PlayNum)
}

func TestClearVideos(t *testing.T) {
	db := openTestDB(t)
	u := NewVideoUpserter(db, quietLogger())
	ctx := context.Background()

	require.NoError(t, u.Save(ctx, handles.DetailRecord{"vod_id": "1"}, models.CollectionRun{ComeKey: "mt"}))
	require.NoError(t, u.Save(ctx, handles.DetailRecord{"vod_id": "2"}, models.CollectionRun{ComeKey: "mt"}))
	require.NoError(t, u.Save(ctx, handles.DetailRecord{"vod_id": "1"}, models.CollectionRun{ComeKey: "hn"}))

	n, err := ClearVideos(ctx, db, "mt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var count int64
	db.Model(&models.Video{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
