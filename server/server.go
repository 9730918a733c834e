package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vodcaiji/middleware"
	"vodcaiji/routes"
	"vodcaiji/services"
)

type Server struct {
	Port   string
	router *gin.Engine
	caiji  *services.CaijiService
	logger *log.Logger
}

// NewServer 创建服务器实例
// ctx 为服务生命周期，取消后后台采集随之停止
func NewServer(ctx context.Context, port string, db *gorm.DB, caiji *services.CaijiService, adminToken string, logger *log.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(logger), middleware.CORS())

	routes.SetupRoutes(router, routes.Deps{
		Context:    ctx,
		DB:         db,
		Runner:     caiji,
		Logger:     logger,
		AdminToken: adminToken,
	})

	return &Server{
		Port:   port,
		router: router,
		caiji:  caiji,
		logger: logger,
	}
}

// Handler 返回路由，便于测试
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动服务器，ctx 取消后优雅退出
// 返回前等待后台采集写完日志
func (s *Server) Start(ctx context.Context) error {
	defer s.waitCaiji()

	srv := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", "http://localhost:"+s.Port).Info("服务器启动")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("服务器启动失败: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("服务器关闭中")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) waitCaiji() {
	if s.caiji == nil {
		return
	}
	s.logger.Info("等待采集结束")
	s.caiji.Wait()
}
