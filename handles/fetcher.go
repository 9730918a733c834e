package handles

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrFetchFailed 所有重试均失败
var ErrFetchFailed = errors.New("fetch failed")

// FetcherOptions 请求参数
type FetcherOptions struct {
	Timeout            time.Duration // 单次请求超时
	Attempts           int           // 总尝试次数（含第一次）
	RetryDelay         time.Duration // 固定重试间隔
	UserAgent          string
	InsecureSkipVerify bool // 跳过证书校验，默认关闭
}

// DefaultFetcherOptions 默认参数：30秒超时，共3次，每次间隔2秒
func DefaultFetcherOptions() FetcherOptions {
	return FetcherOptions{
		Timeout:    30 * time.Second,
		Attempts:   3,
		RetryDelay: 2 * time.Second,
		UserAgent:  "Mozilla/5.0 (compatible; vodcaiji/1.0)",
	}
}

// Fetcher 带固定重试的 GET 请求
// 不打印日志，由调用方决定如何处理失败
type Fetcher struct {
	client *http.Client
	opts   FetcherOptions
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewFetcher 创建 Fetcher
func NewFetcher(opts FetcherOptions) *Fetcher {
	def := DefaultFetcherOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = def.Attempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:  opts,
		sleep: sleepContext,
	}
}

// Fetch 请求 url 并返回响应体
// 非200、空响应、网络错误都按可重试处理，全部失败后返回 ErrFetchFailed
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.opts.Attempts; attempt++ {
		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchFailed, ctx.Err())
		}
		if attempt < f.opts.Attempts {
			if err := f.sleep(ctx, f.opts.RetryDelay); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
			}
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrFetchFailed, f.opts.Attempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
