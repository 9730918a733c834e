package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"
	"gorm.io/gorm"

	"vodcaiji/config"
	"vodcaiji/models"
	"vodcaiji/server"
	"vodcaiji/services"
)

func main() {
	app := cli.NewApp()
	app.Name = "vodcaiji"
	app.Version = "1.0.0"
	app.Usage = "苹果CMS资源站采集"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "配置文件",
			Value: "./config.yaml",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "caiji",
			Usage: "采集一个资源站",
			Flags: []cli.Flag{
				cli.UintFlag{Name: "config-id", Usage: "caiji_configs 表中的配置ID，默认取配置文件 caiji.config_id"},
				cli.IntFlag{Name: "page-limit", Usage: "最多采集的页数，0 表示不限制"},
				cli.BoolFlag{Name: "resume", Usage: "从上次进度继续"},
				cli.BoolFlag{Name: "clear", Usage: "采集前清空该资源站的视频（续采时忽略）"},
			},
			Action: runCaiji,
		},
		{
			Name:   "server",
			Usage:  "启动 HTTP 管理服务",
			Action: runServer,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

type appEnv struct {
	cfg    *config.Config
	logger *log.Logger
	db     *gorm.DB
}

func bootstrap(c *cli.Context) (*appEnv, error) {
	cfg, err := config.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	logger := config.InitLogger(cfg.Log.Level, cfg.Log.Context)

	if err := config.InitDatabase(cfg); err != nil {
		return nil, err
	}
	return &appEnv{cfg: cfg, logger: logger, db: config.GetDB()}, nil
}

func (a *appEnv) newCaijiService(ctx context.Context, metrics *services.Metrics) (*services.CaijiService, error) {
	svc := services.NewCaijiService(a.db, a.logger, services.OptionsFromConfig(a.cfg.Caiji)).
		WithMetrics(metrics)

	if err := svc.Configs().SyncSources(ctx, a.cfg.Sources); err != nil {
		a.logger.WithError(err).Warn("同步资源站配置失败")
	}

	if a.cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("连接 redis 失败: %w", err)
		}
		svc.WithLocker(services.NewRedisLocker(client, a.cfg.Redis.LockTTL).WithLogger(a.logger))
	}
	return svc, nil
}

func runCaiji(c *cli.Context) error {
	a, err := bootstrap(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := a.newCaijiService(ctx, nil)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	configID := c.Uint("config-id")
	if configID == 0 {
		configID = a.cfg.Caiji.ConfigID
	}
	opts := models.RunOptions{
		PageLimit:        c.Int("page-limit"),
		Resume:           c.Bool("resume"),
		ClearBeforeStart: c.Bool("clear"),
	}

	report, err := svc.Run(ctx, configID, opts)
	if report != nil {
		a.logger.WithFields(log.Fields{
			"come_key":        report.ComeKey,
			"start_page":      report.StartPage,
			"end_page":        report.EndPage,
			"pages_processed": report.Stats.PagesProcessed,
			"pages_skipped":   report.Stats.PagesSkipped,
			"total_inserted":  report.Stats.TotalInserted,
			"total_failed":    report.Stats.TotalFailed,
			"elapsed":         report.Elapsed.Round(time.Second).String(),
		}).Info("采集统计")
	}
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("采集失败: %v", err), 1)
	}
	return nil
}

func runServer(c *cli.Context) error {
	a, err := bootstrap(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := services.NewMetrics("vodcaiji", prometheus.DefaultRegisterer)
	svc, err := a.newCaijiService(ctx, metrics)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	srv := server.NewServer(ctx, a.cfg.Server.Port, a.db, svc, a.cfg.Server.AdminToken, a.logger)
	if err := srv.Start(ctx); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
