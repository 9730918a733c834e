package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodcaiji/handles"
	"vodcaiji/models"
)

func TestEndPage(t *testing.T) {
	tests := []struct {
		start, limit, total, want int
	}{
		{1, 0, 10, 10},
		{1, 3, 10, 3},
		{4, 3, 10, 6},
		{9, 5, 10, 10},
		{12, 5, 10, 10},
		{1, -1, 7, 7},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.start, tt.limit, tt.total), func(t *testing.T) {
			assert.Equal(t, tt.want, EndPage(tt.start, tt.limit, tt.total))
		})
	}
}

// TestEngine_SingleRecord 单页单条：按映射写入分类并保存进度
func TestEngine_SingleRecord(t *testing.T) {
	db := openTestDB(t)
	cfg := seedConfig(t, db, "mt", "https://mt.example.com", `{"2":5}`, "")
	logger := quietLogger()

	src := newFakeSource(1)
	src.addRecord(1, "101", "2", "A")

	run, err := NewConfigStore(db).LoadRun(context.Background(), cfg.ID, 0)
	require.NoError(t, err)

	checkpoints := NewCheckpointStore(db, logger)
	engine := NewEngine(src, NewVideoUpserter(db, logger), checkpoints, handles.NopPacer{}, logger)
	report, err := engine.Run(context.Background(), run, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.TotalInserted)
	assert.Equal(t, 0, report.Stats.TotalFailed)
	assert.Equal(t, 1, report.Stats.PagesProcessed)
	assert.Equal(t, 1, report.StartPage)
	assert.Equal(t, 1, report.EndPage)

	var video models.Video
	require.NoError(t, db.Where("caiji_key = ?", "mt_101").First(&video).Error)
	assert.Equal(t, "A", video.VideoTitle)
	assert.Equal(t, 5, video.TypeID)
	assert.Equal(t, "mt", video.ComeKey)

	cp := checkpoints.Load(context.Background(), run)
	assert.Equal(t, 2, cp.CurrentPage)
	assert.Equal(t, 1, cp.TotalPage)
	assert.Equal(t, 1, cp.TotalInserted)

	state, _, _ := engine.State()
	assert.Equal(t, StateDone, state)
}

// TestEngine_Idempotent 重复采集同一条只保留一行
func TestEngine_Idempotent(t *testing.T) {
	db := openTestDB(t)
	cfg := seedConfig(t, db, "mt", "https://mt.example.com", "", "")
	logger := quietLogger()

	src := newFakeSource(1)
	src.addRecord(1, "101", "9", "A")
	run, err := NewConfigStore(db).LoadRun(context.Background(), cfg.ID, 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		engine := NewEngine(src, NewVideoUpserter(db, logger), NewCheckpointStore(db, logger), nil, logger)
		_, err := engine.Run(context.Background(), run, false)
		require.NoError(t, err)
	}

	var count int64
	db.Model(&models.Video{}).Where("caiji_key = ?", "mt_101").Count(&count)
	assert.Equal(t, int64(1), count)

	var video models.Video
	require.NoError(t, db.Where("caiji_key = ?", "mt_101").First(&video).Error)
	assert.Equal(t, models.DefaultTypeID, video.TypeID)
}

// TestEngine_Resume 从断点页开始，受 page_limit 限制
func TestEngine_Resume(t *testing.T) {
	src := newFakeSource(5)
	for page := 1; page <= 5; page++ {
		src.addRecord(page, fmt.Sprint(page*100), "1", "v")
	}
	saver := &countingSaver{}
	checkpoints := &memoryCheckpoints{current: models.Checkpoint{CurrentPage: 3}}
	run := models.CollectionRun{ConfigID: 1, ComeKey: "mt", PageLimit: 2}

	report, err := NewEngine(src, saver, checkpoints, nil, quietLogger()).Run(context.Background(), run, true)
	require.NoError(t, err)

	assert.Equal(t, 3, report.StartPage)
	assert.Equal(t, 4, report.EndPage)
	assert.Equal(t, []int{1, 3, 4}, src.fetchedPages())
	assert.Equal(t, []string{"300", "400"}, saver.ids)
	assert.Equal(t, 5, checkpoints.current.CurrentPage)
	assert.Len(t, checkpoints.saves, 2)
}

// TestEngine_ResumeBeyondTotal 断点超出总页数时不采集任何页
func TestEngine_ResumeBeyondTotal(t *testing.T) {
	src := newFakeSource(5)
	saver := &countingSaver{}
	checkpoints := &memoryCheckpoints{current: models.Checkpoint{CurrentPage: 7}}
	run := models.CollectionRun{ConfigID: 1, ComeKey: "mt"}

	report, err := NewEngine(src, saver, checkpoints, nil, quietLogger()).Run(context.Background(), run, true)
	require.NoError(t, err)

	assert.Equal(t, 7, report.StartPage)
	assert.Equal(t, 5, report.EndPage)
	assert.Zero(t, report.Stats.PagesProcessed)
	assert.Equal(t, []int{1}, src.fetchedPages())
	assert.Empty(t, checkpoints.saves)
}

// TestEngine_FirstPageFailed 第一页失败为致命错误，不写进度
func TestEngine_FirstPageFailed(t *testing.T) {
	src := newFakeSource(3)
	src.failPages[1] = true
	checkpoints := &memoryCheckpoints{}

	engine := NewEngine(src, &countingSaver{}, checkpoints, nil, quietLogger())
	report, err := engine.Run(context.Background(), models.CollectionRun{ComeKey: "mt"}, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFirstPageFailed))
	// 底层原因同样可匹配
	assert.True(t, errors.Is(err, handles.ErrFetchFailed))
	assert.Nil(t, report)
	assert.Empty(t, checkpoints.saves)

	state, _, _ := engine.State()
	assert.Equal(t, StateAborted, state)
}

// TestEngine_SkipFailedPage 中间页失败跳过，不写该页进度
func TestEngine_SkipFailedPage(t *testing.T) {
	src := newFakeSource(3)
	src.addRecord(1, "1", "1", "a")
	src.addRecord(2, "2", "1", "b")
	src.addRecord(3, "3", "1", "c")
	src.failPages[2] = true
	saver := &countingSaver{}
	checkpoints := &memoryCheckpoints{}

	report, err := NewEngine(src, saver, checkpoints, nil, quietLogger()).
		Run(context.Background(), models.CollectionRun{ComeKey: "mt"}, false)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Stats.PagesProcessed)
	assert.Equal(t, 1, report.Stats.PagesSkipped)
	assert.Equal(t, 2, report.Stats.TotalInserted)
	require.Len(t, checkpoints.saves, 2)
	assert.Equal(t, 2, checkpoints.saves[0].CurrentPage)
	assert.Equal(t, 4, checkpoints.saves[1].CurrentPage)
}

// TestEngine_FailedChunk 一批详情失败，整批计入失败
func TestEngine_FailedChunk(t *testing.T) {
	src := newFakeSource(1)
	for i := 1; i <= 12; i++ {
		src.addRecord(1, fmt.Sprint(i), "1", "v")
	}
	src.badIDs["3"] = true
	saver := &countingSaver{}

	report, err := NewEngine(src, saver, &memoryCheckpoints{}, nil, quietLogger()).
		Run(context.Background(), models.CollectionRun{ComeKey: "mt"}, false)
	require.NoError(t, err)

	assert.Equal(t, 10, report.Stats.TotalFailed)
	assert.Equal(t, 2, report.Stats.TotalInserted)
}

// TestEngine_SaveFailure 单条入库失败计入失败，不影响其他记录
func TestEngine_SaveFailure(t *testing.T) {
	src := newFakeSource(1)
	src.addRecord(1, "1", "1", "a")
	src.addRecord(1, "2", "1", "b")
	saver := &countingSaver{failIDs: map[string]bool{"1": true}}

	report, err := NewEngine(src, saver, &memoryCheckpoints{}, nil, quietLogger()).
		Run(context.Background(), models.CollectionRun{ComeKey: "mt"}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.TotalFailed)
	assert.Equal(t, 1, report.Stats.TotalInserted)
}

// TestEngine_EmptyPage 空页视为已处理，仍保存进度
func TestEngine_EmptyPage(t *testing.T) {
	src := newFakeSource(2)
	src.addRecord(2, "9", "1", "v")
	checkpoints := &memoryCheckpoints{}

	report, err := NewEngine(src, &countingSaver{}, checkpoints, nil, quietLogger()).
		Run(context.Background(), models.CollectionRun{ComeKey: "mt"}, false)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Stats.PagesProcessed)
	assert.Equal(t, 1, report.Stats.TotalInserted)
	assert.Len(t, checkpoints.saves, 2)
}

// TestEngine_Cancelled 取消后返回已完成部分的报告
func TestEngine_Cancelled(t *testing.T) {
	src := newFakeSource(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewEngine(src, &countingSaver{}, &memoryCheckpoints{}, nil, quietLogger()).
		Run(ctx, models.CollectionRun{ComeKey: "mt"}, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, report)
	assert.Zero(t, report.Stats.PagesProcessed)
}

func TestEngine_WithBatchSize(t *testing.T) {
	e := NewEngine(nil, nil, nil, nil, nil)
	assert.Equal(t, 10, e.WithBatchSize(0).batchSize)
	assert.Equal(t, 10, e.WithBatchSize(50).batchSize)
	assert.Equal(t, 3, e.WithBatchSize(3).batchSize)
}

// countingSaver 记录入库的 vod_id
type countingSaver struct {
	ids     []string
	failIDs map[string]bool
}

func (s *countingSaver) Save(_ context.Context, record handles.DetailRecord, _ models.CollectionRun) error {
	id := record.RemoteID()
	if s.failIDs[id] {
		return errors.New("save failed")
	}
	s.ids = append(s.ids, id)
	return nil
}
