package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Logger 全局日志
var Logger *log.Logger

// InitLogger 根据配置初始化 logrus，级别无效时退回 info
func InitLogger(level string, reportCaller bool) *log.Logger {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)
	logger.SetReportCaller(reportCaller)

	if logLevel, err := log.ParseLevel(level); err != nil {
		logger.SetLevel(log.InfoLevel)
	} else {
		logger.SetLevel(logLevel)
	}

	Logger = logger
	return logger
}

// GetLogger 获取日志实例，未初始化时返回默认配置
func GetLogger() *log.Logger {
	if Logger == nil {
		return InitLogger("info", false)
	}
	return Logger
}
