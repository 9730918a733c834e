package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vodcaiji/config"
	"vodcaiji/handles"
	"vodcaiji/models"
)

// CaijiOptions 采集服务参数
type CaijiOptions struct {
	Fetcher   handles.FetcherOptions
	BatchSize int
	PaceMin   time.Duration
	PaceMax   time.Duration
}

// OptionsFromConfig 从配置生成采集服务参数
func OptionsFromConfig(c config.CaijiConfig) CaijiOptions {
	return CaijiOptions{
		Fetcher: handles.FetcherOptions{
			Timeout:            c.Timeout,
			Attempts:           c.Attempts,
			RetryDelay:         c.RetryDelay,
			UserAgent:          c.UserAgent,
			InsecureSkipVerify: c.InsecureSkipVerify,
		},
		BatchSize: c.BatchSize,
		PaceMin:   c.PaceMin,
		PaceMax:   c.PaceMax,
	}
}

// CaijiService 采集入口：读取配置、加锁、清空、运行引擎、写采集日志
type CaijiService struct {
	db          *gorm.DB
	logger      *log.Logger
	configs     *ConfigStore
	checkpoints *CheckpointStore
	upserter    *VideoUpserter
	locker      RunLocker
	metrics     *Metrics
	opts        CaijiOptions

	newFetcher func(handles.FetcherOptions) handles.BodyFetcher
	newPacer   func() handles.Pacer

	mu      sync.Mutex
	busy    bool
	current *runningEngine
	wg      sync.WaitGroup
}

type runningEngine struct {
	engine    *Engine
	configID  uint
	comeKey   string
	startedAt time.Time
}

// NewCaijiService 创建采集服务
func NewCaijiService(db *gorm.DB, logger *log.Logger, opts CaijiOptions) *CaijiService {
	s := &CaijiService{
		db:          db,
		logger:      logger,
		configs:     NewConfigStore(db),
		checkpoints: NewCheckpointStore(db, logger),
		upserter:    NewVideoUpserter(db, logger),
		locker:      NewLocalLocker(),
		opts:        opts,
	}
	s.newFetcher = func(o handles.FetcherOptions) handles.BodyFetcher {
		return handles.NewFetcher(o)
	}
	s.newPacer = func() handles.Pacer {
		return handles.NewRandomPacer(s.opts.PaceMin, s.opts.PaceMax)
	}
	return s
}

// WithLocker 替换运行锁
func (s *CaijiService) WithLocker(l RunLocker) *CaijiService {
	s.locker = l
	return s
}

// WithMetrics 设置指标
func (s *CaijiService) WithMetrics(m *Metrics) *CaijiService {
	s.metrics = m
	return s
}

// WithPacer 替换节流器构造函数
func (s *CaijiService) WithPacer(f func() handles.Pacer) *CaijiService {
	s.newPacer = f
	return s
}

// Configs 配置读取服务
func (s *CaijiService) Configs() *ConfigStore {
	return s.configs
}

// job 已完成配置读取、加锁与日志创建，等待执行
type job struct {
	configID  uint
	run       models.CollectionRun
	opts      models.RunOptions
	log       models.CollectionLog
	logger    *log.Entry
	startTime time.Time
	release   func()
}

// Run 同步执行一次采集
// 返回错误仅限致命错误：配置缺失、已在运行、清空失败、第一页失败、被取消
func (s *CaijiService) Run(ctx context.Context, configID uint, opts models.RunOptions) (*models.RunReport, error) {
	j, err := s.prepare(ctx, configID, opts)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, j)
}

// Start 同步完成配置读取、加锁与清空，采集在后台运行
// ctx 是采集本身的生命周期，不能是请求的 ctx；已有采集时返回 ErrRunLocked
func (s *CaijiService) Start(ctx context.Context, configID uint, opts models.RunOptions) error {
	j, err := s.prepare(ctx, configID, opts)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		report, err := s.execute(ctx, j)
		if err != nil {
			j.logger.WithError(err).Error("后台采集失败")
			return
		}
		j.logger.WithFields(log.Fields{
			"total_inserted": report.Stats.TotalInserted,
			"total_failed":   report.Stats.TotalFailed,
		}).Info("后台采集结束")
	}()
	return nil
}

// Wait 等待后台采集全部结束
func (s *CaijiService) Wait() {
	s.wg.Wait()
}

func (s *CaijiService) prepare(ctx context.Context, configID uint, opts models.RunOptions) (*job, error) {
	run, err := s.configs.LoadRun(ctx, configID, opts.PageLimit)
	if err != nil {
		return nil, err
	}
	logger := s.logger.WithFields(log.Fields{"config_id": configID, "come_key": run.ComeKey})

	// 本进程内同时只允许一个采集
	if !s.claim() {
		return nil, fmt.Errorf("%w: %s", ErrRunLocked, run.ComeKey)
	}
	release, err := s.locker.Acquire(ctx, run.ComeKey)
	if err != nil {
		s.unclaim()
		return nil, err
	}
	cleanup := func() {
		release()
		s.unclaim()
	}

	if opts.ClearBeforeStart {
		if opts.Resume {
			logger.Warn("断点续采时忽略清空参数")
		} else {
			n, err := ClearVideos(ctx, s.db, run.ComeKey)
			if err != nil {
				cleanup()
				return nil, fmt.Errorf("清空视频失败: %w", err)
			}
			logger.WithField("deleted", n).Info("已清空资源站视频")
		}
	}

	startTime := time.Now()
	collectionLog := models.CollectionLog{
		ConfigID:  configID,
		ComeKey:   run.ComeKey,
		Resume:    opts.Resume,
		PageLimit: run.PageLimit,
		StartTime: startTime,
		Status:    models.LogStatusRunning,
	}
	if err := s.db.WithContext(ctx).Create(&collectionLog).Error; err != nil {
		logger.WithError(err).Warn("写入采集日志失败")
	}

	return &job{
		configID:  configID,
		run:       run,
		opts:      opts,
		log:       collectionLog,
		logger:    logger,
		startTime: startTime,
		release:   cleanup,
	}, nil
}

func (s *CaijiService) execute(ctx context.Context, j *job) (*models.RunReport, error) {
	defer j.release()

	collector := handles.NewCollector(j.run.BaseURL, s.newFetcher(s.opts.Fetcher), s.newPacer(), s.logger)
	engine := NewEngine(collector, s.upserter, s.checkpoints, s.newPacer(), s.logger).
		WithBatchSize(s.opts.BatchSize).
		WithMetrics(s.metrics)

	s.setCurrent(&runningEngine{engine: engine, configID: j.configID, comeKey: j.run.ComeKey, startedAt: j.startTime})

	report, runErr := engine.Run(ctx, j.run, j.opts.Resume)

	status := finalStatus(report, runErr)
	s.metrics.observeRun(j.run.ComeKey, status, time.Since(j.startTime).Seconds())
	s.finishLog(&j.log, report, runErr, status)

	return report, runErr
}

func finalStatus(report *models.RunReport, err error) string {
	switch {
	case err != nil:
		return models.LogStatusFailed
	case report.Stats.TotalFailed > 0 || report.Stats.PagesSkipped > 0:
		return models.LogStatusPartial
	default:
		return models.LogStatusSuccess
	}
}

func (s *CaijiService) finishLog(l *models.CollectionLog, report *models.RunReport, runErr error, status string) {
	if l.ID == 0 {
		return
	}
	l.EndTime = time.Now()
	l.Duration = l.EndTime.Sub(l.StartTime).Round(time.Millisecond).String()
	l.Status = status
	if report != nil {
		l.StartPage = report.StartPage
		l.EndPage = report.EndPage
		l.TotalPages = report.TotalPages
		l.TotalRecords = report.TotalRecords
		l.PagesProcessed = report.Stats.PagesProcessed
		l.PagesSkipped = report.Stats.PagesSkipped
		l.SuccessCount = report.Stats.TotalInserted
		l.ErrorCount = report.Stats.TotalFailed
	}
	if runErr != nil {
		l.Message = runErr.Error()
	}
	// 运行 ctx 可能已取消，日志仍需写入
	if err := s.db.Save(l).Error; err != nil {
		s.logger.WithError(err).WithField("log_id", l.ID).Warn("更新采集日志失败")
	}
}

func (s *CaijiService) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *CaijiService) unclaim() {
	s.mu.Lock()
	s.busy = false
	s.current = nil
	s.mu.Unlock()
}

func (s *CaijiService) setCurrent(r *runningEngine) {
	s.mu.Lock()
	s.current = r
	s.mu.Unlock()
}

// Status 当前运行状态
func (s *CaijiService) Status() models.RunStatus {
	s.mu.Lock()
	busy, cur := s.busy, s.current
	s.mu.Unlock()
	if cur == nil {
		if busy {
			// 已加锁但引擎尚未创建
			return models.RunStatus{Running: true, State: string(StateInit)}
		}
		return models.RunStatus{}
	}
	state, page, endPage := cur.engine.State()
	return models.RunStatus{
		Running:   true,
		ConfigID:  cur.configID,
		ComeKey:   cur.comeKey,
		State:     string(state),
		Page:      page,
		EndPage:   endPage,
		StartedAt: cur.startedAt,
	}
}

// Checkpoint 读取配置当前的采集进度
func (s *CaijiService) Checkpoint(ctx context.Context, configID uint) (models.Checkpoint, error) {
	cfg, err := s.configs.Get(ctx, configID)
	if err != nil {
		return models.Checkpoint{}, err
	}
	return ParseCheckpoint(cfg.CaijiStateInfo), nil
}

// CollectionLogs 最近的采集日志
func (s *CaijiService) CollectionLogs(ctx context.Context, limit int) ([]models.CollectionLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []models.CollectionLog
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
