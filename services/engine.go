package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"vodcaiji/handles"
	"vodcaiji/models"
)

// ErrFirstPageFailed 第一页获取失败，无法确定采集范围
var ErrFirstPageFailed = errors.New("first listing page failed")

// EngineState 引擎状态
type EngineState string

const (
	StateInit               EngineState = "init"
	StateConfiguring        EngineState = "configuring"
	StatePaginating         EngineState = "paginating"
	StatePageFetch          EngineState = "page_fetch"
	StateDetailFetchAndSave EngineState = "detail_fetch_and_save"
	StateCheckpointUpdate   EngineState = "checkpoint_update"
	StateDone               EngineState = "done"
	StateAborted            EngineState = "aborted"
)

// PageSource 列表与详情来源，由 handles.Collector 实现
type PageSource interface {
	FetchPage(ctx context.Context, page int) (*handles.ListPage, error)
	FetchDetails(ctx context.Context, ids []string, batchSize int) ([]handles.DetailRecord, int)
}

// RecordSaver 单条入库
type RecordSaver interface {
	Save(ctx context.Context, record handles.DetailRecord, run models.CollectionRun) error
}

// CheckpointRepository 进度存取
type CheckpointRepository interface {
	Load(ctx context.Context, run models.CollectionRun) models.Checkpoint
	Save(ctx context.Context, run models.CollectionRun, cp models.Checkpoint) error
}

// Engine 单个资源站的采集流程：逐页获取列表，分批获取详情，逐条入库，每页保存进度
type Engine struct {
	source      PageSource
	saver       RecordSaver
	checkpoints CheckpointRepository
	pacer       handles.Pacer
	metrics     *Metrics
	logger      *log.Logger
	batchSize   int
	now         func() time.Time

	mu      sync.RWMutex
	state   EngineState
	page    int
	endPage int
}

// NewEngine 创建采集引擎
func NewEngine(source PageSource, saver RecordSaver, checkpoints CheckpointRepository, pacer handles.Pacer, logger *log.Logger) *Engine {
	if pacer == nil {
		pacer = handles.NopPacer{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{
		source:      source,
		saver:       saver,
		checkpoints: checkpoints,
		pacer:       pacer,
		logger:      logger,
		batchSize:   handles.MaxBatchSize,
		now:         time.Now,
		state:       StateInit,
	}
}

// WithMetrics 设置指标
func (e *Engine) WithMetrics(m *Metrics) *Engine {
	e.metrics = m
	return e
}

// WithBatchSize 设置详情批大小，超出 [1,10] 时使用 10
func (e *Engine) WithBatchSize(n int) *Engine {
	if n <= 0 || n > handles.MaxBatchSize {
		n = handles.MaxBatchSize
	}
	e.batchSize = n
	return e
}

// State 当前状态、页码与结束页
func (e *Engine) State() (EngineState, int, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state, e.page, e.endPage
}

func (e *Engine) setState(s EngineState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) setPage(page, endPage int) {
	e.mu.Lock()
	e.page = page
	e.endPage = endPage
	e.mu.Unlock()
}

// EndPage 计算结束页：pageLimit > 0 时为 min(startPage+pageLimit-1, totalPages)
func EndPage(startPage, pageLimit, totalPages int) int {
	if pageLimit <= 0 {
		return totalPages
	}
	end := startPage + pageLimit - 1
	if end > totalPages {
		return totalPages
	}
	return end
}

// Run 执行一次采集
// 只有第一页失败是致命错误；之后的页、批次、单条失败都计入统计
func (e *Engine) Run(ctx context.Context, run models.CollectionRun, resume bool) (*models.RunReport, error) {
	startTime := e.now()
	logger := e.logger.WithField("come_key", run.ComeKey)

	e.setState(StateConfiguring)
	startPage := 1
	if resume {
		cp := e.checkpoints.Load(ctx, run)
		startPage = cp.CurrentPage
		logger.WithField("current_page", startPage).Info("从断点继续采集")
	}

	first, err := e.source.FetchPage(ctx, 1)
	if err != nil {
		e.setState(StateAborted)
		return nil, fmt.Errorf("%w: %w", ErrFirstPageFailed, err)
	}

	e.setState(StatePaginating)
	endPage := EndPage(startPage, run.PageLimit, first.PageCount)
	report := &models.RunReport{
		ComeKey:      run.ComeKey,
		StartPage:    startPage,
		EndPage:      endPage,
		TotalPages:   first.PageCount,
		TotalRecords: first.Total,
		StartTime:    startTime,
	}

	logger.WithFields(log.Fields{
		"start_page":  startPage,
		"end_page":    endPage,
		"total_pages": first.PageCount,
		"total":       first.Total,
	}).Info("开始采集")

	var stats models.RunStatistics
	var runErr error
	for page := startPage; page <= endPage; page++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		e.setPage(page, endPage)

		var listPage *handles.ListPage
		if page == 1 {
			listPage = first
		}
		pageStats, processed := e.processPage(ctx, run, page, listPage)
		stats.Add(pageStats)
		e.metrics.observePage(run.ComeKey, page, processed)

		if processed {
			e.setState(StateCheckpointUpdate)
			cp := models.Checkpoint{
				CurrentPage:   page + 1,
				TotalPage:     first.PageCount,
				LastTime:      e.now(),
				TotalInserted: stats.TotalInserted,
				TotalFailed:   stats.TotalFailed,
			}
			if err := e.checkpoints.Save(ctx, run, cp); err != nil {
				logger.WithError(err).WithField("page", page).Error("保存采集进度失败")
			}
		}

		if page < endPage {
			if err := e.pacer.Wait(ctx); err != nil {
				runErr = err
				break
			}
		}
	}

	report.Stats = stats
	report.EndTime = e.now()
	report.Elapsed = report.EndTime.Sub(startTime)

	if runErr != nil {
		e.setState(StateAborted)
		logger.WithError(runErr).Warn("采集被中断")
		return report, fmt.Errorf("采集被中断: %w", runErr)
	}

	e.setState(StateDone)
	logger.WithFields(log.Fields{
		"pages_processed": stats.PagesProcessed,
		"pages_skipped":   stats.PagesSkipped,
		"total_inserted":  stats.TotalInserted,
		"total_failed":    stats.TotalFailed,
		"elapsed":         report.Elapsed.Round(time.Millisecond).String(),
	}).Info("采集完成")

	return report, nil
}

// processPage 处理一页，返回本页统计以及是否成功处理（决定是否保存进度）
func (e *Engine) processPage(ctx context.Context, run models.CollectionRun, page int, listPage *handles.ListPage) (models.RunStatistics, bool) {
	var stats models.RunStatistics
	logger := e.logger.WithFields(log.Fields{"come_key": run.ComeKey, "page": page})

	if listPage == nil {
		e.setState(StatePageFetch)
		lp, err := e.source.FetchPage(ctx, page)
		if err != nil {
			logger.WithError(err).Warn("列表页获取失败，跳过")
			stats.PagesSkipped = 1
			return stats, false
		}
		listPage = lp
	}

	stats.PagesProcessed = 1
	if listPage.Empty() {
		logger.Info("列表页为空")
		return stats, true
	}

	e.setState(StateDetailFetchAndSave)
	records, failed := e.source.FetchDetails(ctx, listPage.IDs, e.batchSize)
	stats.TotalFailed += failed

	for _, record := range records {
		if err := e.saver.Save(ctx, record, run); err != nil {
			stats.TotalFailed++
			logger.WithError(err).WithField("vod_id", record.RemoteID()).Warn("视频入库失败")
			continue
		}
		stats.TotalInserted++
	}
	e.metrics.observeRecords(run.ComeKey, stats.TotalInserted, stats.TotalFailed)

	logger.WithFields(log.Fields{
		"ids":    len(listPage.IDs),
		"saved":  stats.TotalInserted,
		"failed": stats.TotalFailed,
	}).Info("列表页处理完成")
	return stats, true
}
