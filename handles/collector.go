package handles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// 苹果CMS接口约定
const (
	apiPath       = "/api.php/provide/vod/"
	codeOK        = 1
	MaxBatchSize  = 10
	defaultBatchN = MaxBatchSize
)

// ErrInvalidResponse 响应无法解析或 code 不为 1
var ErrInvalidResponse = errors.New("invalid api response")

// BodyFetcher 获取 url 的响应体
type BodyFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// 苹果CMS列表接口响应
// pagecount / total / code 在不同资源站可能是 string 或 int
type AppleCMSResponse struct {
	Code      interface{}              `json:"code"`
	Msg       string                   `json:"msg"`
	Page      interface{}              `json:"page"`
	PageCount interface{}              `json:"pagecount"`
	Limit     interface{}              `json:"limit"`
	Total     interface{}              `json:"total"`
	List      []map[string]interface{} `json:"list"`
}

// 详情接口响应，list 缺失时为 nil
type detailResponse struct {
	List *[]DetailRecord `json:"list"`
}

// ListPage 一页列表结果
type ListPage struct {
	Page      int
	PageCount int
	Total     int
	IDs       []string
}

// Empty 当前页没有可采集的视频
func (p *ListPage) Empty() bool {
	return p == nil || len(p.IDs) == 0
}

// DetailRecord 详情接口返回的原始视频数据
type DetailRecord map[string]interface{}

func (r DetailRecord) RemoteID() string     { return toString(r["vod_id"]) }
func (r DetailRecord) RemoteTypeID() string { return toString(r["type_id"]) }
func (r DetailRecord) Title() string        { return toString(r["vod_name"]) }
func (r DetailRecord) Pic() string          { return toString(r["vod_pic"]) }
func (r DetailRecord) Content() string      { return toString(r["vod_content"]) }
func (r DetailRecord) Blurb() string        { return toString(r["vod_blurb"]) }
func (r DetailRecord) PlayURL() string      { return toString(r["vod_play_url"]) }

// Description 优先 vod_content，为空时使用 vod_blurb
func (r DetailRecord) Description() string {
	if c := r.Content(); strings.TrimSpace(c) != "" {
		return c
	}
	return r.Blurb()
}

// Collector 采集器：列表页与批量详情
type Collector struct {
	fetcher BodyFetcher
	pacer   Pacer
	baseURL string
	logger  *log.Logger
}

// NewCollector 创建采集器
func NewCollector(baseURL string, fetcher BodyFetcher, pacer Pacer, logger *log.Logger) *Collector {
	if pacer == nil {
		pacer = NopPacer{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Collector{
		fetcher: fetcher,
		pacer:   pacer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// 辅助函数：类型转换
func toInt(v interface{}) int {
	switch val := v.(type) {
	case int:
		return val
	case float64:
		return int(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return 0
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	}
	return ""
}

// ListURL 列表页地址
func (c *Collector) ListURL(page int) string {
	return fmt.Sprintf("%s%s?ac=list&pg=%d", c.baseURL, apiPath, page)
}

// DetailURL 批量详情地址
func (c *Collector) DetailURL(ids []string) string {
	return fmt.Sprintf("%s%s?ac=detail&ids=%s", c.baseURL, apiPath, strings.Join(ids, ","))
}

// FetchPage 获取一页列表
// 请求失败、解析失败、code 不为 1 都返回错误；list 为空不是错误
func (c *Collector) FetchPage(ctx context.Context, page int) (*ListPage, error) {
	body, err := c.fetcher.Fetch(ctx, c.ListURL(page))
	if err != nil {
		return nil, fmt.Errorf("获取第 %d 页失败: %w", page, err)
	}

	var resp AppleCMSResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("第 %d 页 %w: %v", page, ErrInvalidResponse, err)
	}
	if toInt(resp.Code) != codeOK {
		return nil, fmt.Errorf("第 %d 页 %w: code=%v msg=%s", page, ErrInvalidResponse, resp.Code, resp.Msg)
	}

	result := &ListPage{
		Page:      page,
		PageCount: toInt(resp.PageCount),
		Total:     toInt(resp.Total),
		IDs:       make([]string, 0, len(resp.List)),
	}
	for _, item := range resp.List {
		if id := toString(item["vod_id"]); id != "" {
			result.IDs = append(result.IDs, id)
		}
	}
	return result, nil
}

// FetchDetails 按批获取详情，每批最多 MaxBatchSize 个
// 返回成功解析的记录和失败批次中的 id 数量；单批失败不影响其他批次
func (c *Collector) FetchDetails(ctx context.Context, ids []string, batchSize int) ([]DetailRecord, int) {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = defaultBatchN
	}

	records := make([]DetailRecord, 0, len(ids))
	failed := 0
	totalBatches := (len(ids) + batchSize - 1) / batchSize

	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]
		batchNum := i/batchSize + 1

		if err := c.pacer.Wait(ctx); err != nil {
			// 取消后剩余批次全部计为失败
			failed += len(ids) - i
			c.logger.WithError(err).WithField("batch", batchNum).Warn("详情采集被取消")
			break
		}

		list, err := c.fetchDetailBatch(ctx, batch)
		if err != nil {
			failed += len(batch)
			c.logger.WithError(err).WithFields(log.Fields{
				"batch": fmt.Sprintf("%d/%d", batchNum, totalBatches),
				"ids":   strings.Join(batch, ","),
			}).Warn("批次详情获取失败")
			continue
		}
		records = append(records, list...)
	}

	return records, failed
}

func (c *Collector) fetchDetailBatch(ctx context.Context, ids []string) ([]DetailRecord, error) {
	body, err := c.fetcher.Fetch(ctx, c.DetailURL(ids))
	if err != nil {
		return nil, err
	}

	var resp detailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if resp.List == nil {
		return nil, fmt.Errorf("%w: list 字段缺失", ErrInvalidResponse)
	}
	return *resp.List, nil
}

// PlayURL 单集播放地址
type PlayURL struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ParsePlayURLs 解析 "第1集$url#第2集$url"，多个播放源以 $$$ 分隔时只取第一组
func ParsePlayURLs(playURLStr string) []PlayURL {
	var playURLs []PlayURL

	if idx := strings.Index(playURLStr, "$$$"); idx >= 0 {
		playURLStr = playURLStr[:idx]
	}

	episodes := strings.Split(playURLStr, "#")
	for _, episode := range episodes {
		if episode == "" {
			continue
		}

		parts := strings.SplitN(episode, "$", 2)
		if len(parts) == 2 {
			playURLs = append(playURLs, PlayURL{
				Name: parts[0],
				URL:  parts[1],
			})
		}
	}

	return playURLs
}
