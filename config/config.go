/*
Package config 配置管理包

项目结构说明：
================

	/
	├── main.go              # 程序入口（urfave/cli：caiji / server 两个命令）
	├── config/              # 配置、日志、数据库初始化
	├── models/              # 数据库模型与运行期数据结构
	├── handles/             # 远程接口访问（Fetcher、Collector、Pacer）与 HTTP 处理器
	├── services/            # 采集引擎、入库、进度、配置读取、运行锁、指标
	├── routes/              # 路由注册
	├── server/              # HTTP 服务
	├── middleware/          # 中间件
	└── utils/               # 工具函数（HTML清理、统一响应）

数据流向：
 1. main.go -> 加载配置 -> 初始化日志和数据库
 2. caiji 命令 -> services.CaijiService -> Engine -> handles.Collector -> 入库
 3. server 命令 -> routes -> handles -> services

运行方式：
 1. 采集:   ./vodcaiji caiji --config-id=1 --page-limit=10 --resume
 2. 服务器: ./vodcaiji server
*/
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port       string `mapstructure:"port"`
		AdminToken string `mapstructure:"admin_token"`
	} `mapstructure:"server"`

	Log struct {
		Level   string `mapstructure:"level"`
		Context bool   `mapstructure:"context"`
	} `mapstructure:"log"`

	Database struct {
		Driver string `mapstructure:"driver"` // sqlite / postgres
		DSN    string `mapstructure:"dsn"`
		Debug  bool   `mapstructure:"debug"`
	} `mapstructure:"database"`

	Redis struct {
		Addr     string        `mapstructure:"addr"` // 为空时使用进程内锁
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		LockTTL  time.Duration `mapstructure:"lock_ttl"`
	} `mapstructure:"redis"`

	Caiji CaijiConfig `mapstructure:"caiji"`

	Sources []SourceConfig `mapstructure:"sources"`
}

// CaijiConfig 采集相关参数
type CaijiConfig struct {
	ConfigID           uint          `mapstructure:"config_id"`
	UserAgent          string        `mapstructure:"user_agent"`
	Timeout            time.Duration `mapstructure:"timeout"`
	Attempts           int           `mapstructure:"attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	BatchSize          int           `mapstructure:"batch_size"`
	PaceMin            time.Duration `mapstructure:"pace_min"`
	PaceMax            time.Duration `mapstructure:"pace_max"`
}

// SourceConfig 配置文件中预置的资源站，启动时同步到 caiji_configs 表
type SourceConfig struct {
	Name            string         `mapstructure:"name"`
	ComeKey         string         `mapstructure:"come_key"`
	BaseURL         string         `mapstructure:"base_url"`
	Enabled         bool           `mapstructure:"enabled"`
	TypeIDTranslate map[string]int `mapstructure:"type_id_translate"`
}

var AppConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.context", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "vodcms.db")
	v.SetDefault("database.debug", false)
	// AutomaticEnv 只对已知的 key 生效，每个字段都需要默认值
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 6*time.Hour)
	v.SetDefault("caiji.config_id", 1)
	v.SetDefault("caiji.user_agent", "Mozilla/5.0 (compatible; vodcaiji/1.0)")
	v.SetDefault("caiji.timeout", 30*time.Second)
	v.SetDefault("caiji.attempts", 3)
	v.SetDefault("caiji.retry_delay", 2*time.Second)
	v.SetDefault("caiji.insecure_skip_verify", false)
	v.SetDefault("caiji.batch_size", 10)
	v.SetDefault("caiji.pace_min", 5*time.Second)
	v.SetDefault("caiji.pace_max", 10*time.Second)
}

// LoadConfig 加载配置
// 顺序：.env -> 配置文件（可选）-> 环境变量覆盖，如 CAIJI_BATCH_SIZE、DATABASE_DSN
func LoadConfig(filePath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 配置文件不存在时只使用默认值和环境变量
	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			v.SetConfigFile(filePath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	AppConfig = cfg
	return cfg, nil
}
