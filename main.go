package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"fashion-feedback/internal/config"
	"fashion-feedback/internal/db"
	"fashion-feedback/internal/logger"
	"fashion-feedback/internal/router"
	"fashion-feedback/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	gdb, err := db.Open(cfg.Database, zl)
	if err != nil {
		zl.Fatal("初始化数据库失败", zap.Error(err))
	}

	// 初始化服务
	svcCtx := service.NewServiceContext(cfg, gdb, zl)

	// 初始化路由
	r := router.SetupRouter(svcCtx, zl)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		zl.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("启动服务失败", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("收到退出信号，开始关闭")

	// 先停止接收请求，再排空反馈队列
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Feedback.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("关闭 HTTP 服务失败", zap.Error(err))
	}
	if err := svcCtx.Processor.Shutdown(shutdownCtx); err != nil {
		zl.Error("关闭反馈管线失败", zap.Error(err))
	}
	if err := db.Close(gdb); err != nil {
		zl.Error("关闭数据库失败", zap.Error(err))
	}
	zl.Info("已退出")
}
