package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"vodcaiji/models"
)

// ErrRunLocked 已有采集在运行
var ErrRunLocked = models.ErrRunLocked

// RunLocker 保证同一配置同时只有一个采集
type RunLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker 进程内锁
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRunLocked, key)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 只为自己持有的锁续期
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker 基于 SET NX 的跨进程锁，持有期间按 ttl/3 续期
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *log.Logger
}

// NewRedisLocker 创建 Redis 锁
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &RedisLocker{client: client, ttl: ttl, prefix: "vodcaiji:lock:", logger: log.StandardLogger()}
}

// WithLogger 设置续期失败时使用的日志
func (l *RedisLocker) WithLogger(logger *log.Logger) *RedisLocker {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// LockKey redis 中的键名
func (l *RedisLocker) LockKey(key string) string {
	return l.prefix + key
}

// RefreshInterval 续期间隔
func (l *RedisLocker) RefreshInterval() time.Duration {
	d := l.ttl / 3
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	return d
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := fmt.Sprintf("%d-%d", os.Getpid(), time.Now().UnixNano())
	lockKey := l.LockKey(key)

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("获取运行锁失败: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunLocked, key)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(lockKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// 调用方的 ctx 可能已取消，释放锁使用独立超时
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.client, []string{lockKey}, token).Err()
		})
	}, nil
}

func (l *RedisLocker) keepAlive(lockKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n, err := refreshScript.Run(rctx, l.client, []string{lockKey}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				l.logger.WithError(err).WithField("key", lockKey).Warn("运行锁续期失败")
				continue
			}
			if n == 0 {
				l.logger.WithField("key", lockKey).Error("运行锁已丢失")
				return
			}
		}
	}
}
