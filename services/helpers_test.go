package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vodcaiji/config"
	"vodcaiji/handles"
	"vodcaiji/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, config.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// singleConn 后台采集与测试共用内存库时串行访问，避免共享缓存表锁
func singleConn(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

func seedConfig(t *testing.T, db *gorm.DB, comeKey, baseURL, translate, state string) models.CaijiConfig {
	t.Helper()
	cfg := models.CaijiConfig{
		Name:            comeKey,
		ComeKey:         comeKey,
		BaseURL:         baseURL,
		Enabled:         true,
		TypeIDTranslate: translate,
		CaijiStateInfo:  state,
	}
	require.NoError(t, db.Create(&cfg).Error)
	return cfg
}

// fakeSource 内存中的列表与详情
type fakeSource struct {
	mu        sync.Mutex
	pageCount int
	total     int
	pages     map[int][]string
	failPages map[int]bool
	details   map[string]handles.DetailRecord
	badIDs    map[string]bool // 包含这些 id 的批次整体失败
	fetched   []int
}

func newFakeSource(pageCount int) *fakeSource {
	return &fakeSource{
		pageCount: pageCount,
		total:     pageCount * 20,
		pages:     make(map[int][]string),
		failPages: make(map[int]bool),
		details:   make(map[string]handles.DetailRecord),
		badIDs:    make(map[string]bool),
	}
}

func (f *fakeSource) addRecord(page int, id, typeID, title string) {
	f.pages[page] = append(f.pages[page], id)
	f.details[id] = handles.DetailRecord{
		"vod_id":   id,
		"type_id":  typeID,
		"vod_name": title,
	}
}

func (f *fakeSource) FetchPage(_ context.Context, page int) (*handles.ListPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, page)
	if f.failPages[page] {
		return nil, fmt.Errorf("page %d: %w", page, handles.ErrFetchFailed)
	}
	return &handles.ListPage{
		Page:      page,
		PageCount: f.pageCount,
		Total:     f.total,
		IDs:       f.pages[page],
	}, nil
}

func (f *fakeSource) FetchDetails(_ context.Context, ids []string, batchSize int) ([]handles.DetailRecord, int) {
	var records []handles.DetailRecord
	failed := 0
	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]
		bad := false
		for _, id := range chunk {
			if f.badIDs[id] {
				bad = true
				break
			}
		}
		if bad {
			failed += len(chunk)
			continue
		}
		for _, id := range chunk {
			records = append(records, f.details[id])
		}
	}
	return records, failed
}

func (f *fakeSource) fetchedPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.fetched...)
}

// memoryCheckpoints 记录每次保存
type memoryCheckpoints struct {
	current models.Checkpoint
	saves   []models.Checkpoint
}

func (m *memoryCheckpoints) Load(context.Context, models.CollectionRun) models.Checkpoint {
	if m.current.CurrentPage == 0 {
		return models.NewCheckpoint()
	}
	return m.current
}

func (m *memoryCheckpoints) Save(_ context.Context, _ models.CollectionRun, cp models.Checkpoint) error {
	m.current = cp
	m.saves = append(m.saves, cp)
	return nil
}
