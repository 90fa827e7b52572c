package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/config"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/history"
	logpkg "github.com/Team-KimBanana/kimbanana-front-sub000/internal/logger"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/render"
	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/session"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "presentation-sync")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting presentation-sync session",
		zap.String("presentation_id", cfg.Sync.PresentationID),
	)

	// 鉴权凭证由外部协作方下发，这里从环境读取
	tokens := history.TokenProviderFunc(func() (string, error) {
		token := os.Getenv("AUTH_TOKEN")
		if token == "" {
			return "", fmt.Errorf("AUTH_TOKEN is not set")
		}
		return token, nil
	})

	renderer := render.NewSVGRenderer(320, 180)
	uploader := render.NewHTTPUploader(cfg.API.BaseURL, cfg.API.Timeout, tokens, log)

	// 创建会话
	sess, err := session.NewSession(cfg, os.Getenv("USER_ID"), tokens, renderer, uploader, log)
	if err != nil {
		log.Fatal("Failed to create session", zap.Error(err))
	}

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 启动会话（在 goroutine 中）
	errChan := make(chan error, 1)
	go func() {
		if err := sess.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// 等待信号或错误
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		log.Error("Session error", zap.Error(err))
		cancel()
	}

	// 停止会话
	if err := sess.Stop(ctx); err != nil {
		log.Error("Error stopping session", zap.Error(err))
	}

	log.Info("Session stopped")
}
