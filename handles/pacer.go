package handles

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer 控制对资源站的请求节奏，与请求逻辑解耦
type Pacer interface {
	Wait(ctx context.Context) error
}

// RandomPacer 每次等待 [Min, Max] 之间的随机时长
type RandomPacer struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomPacer 创建随机间隔节流器，min > max 时交换，负值按 0 处理
func NewRandomPacer(min, max time.Duration) *RandomPacer {
	if max < min {
		min, max = max, min
	}
	if min < 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	return &RandomPacer{
		Min: min,
		Max: max,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next 返回下一次等待时长
func (p *RandomPacer) Next() time.Duration {
	span := p.Max - p.Min
	if span <= 0 {
		return p.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Min + time.Duration(p.rnd.Int63n(int64(span)+1))
}

// Wait 阻塞到间隔结束或 ctx 取消
func (p *RandomPacer) Wait(ctx context.Context) error {
	return sleepContext(ctx, p.Next())
}

// NopPacer 不等待，用于测试或本地调试
type NopPacer struct{}

func (NopPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}
