package config

import (
	"fmt"
	stdlog "log"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vodcaiji/models"
)

var DB *gorm.DB

// OpenDatabase 按驱动打开数据库并自动迁移表结构
func OpenDatabase(driver, dsn string, debug bool, l *log.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", driver)
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}

	// gorm 日志写入 logrus
	gormLogger := logger.New(
		stdlog.New(l.WriterLevel(log.DebugLevel), "", 0),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate 自动迁移表结构
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Video{},
		&models.CaijiConfig{},
		&models.CollectionLog{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// InitDatabase 初始化全局数据库
func InitDatabase(cfg *Config) error {
	db, err := OpenDatabase(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Debug, GetLogger())
	if err != nil {
		return err
	}
	DB = db

	GetLogger().WithField("driver", cfg.Database.Driver).Info("数据库初始化成功")
	return nil
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return DB
}
