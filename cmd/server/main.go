package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sanscope/sanscope/api/router"
	"github.com/sanscope/sanscope/internal/config"
	"github.com/sanscope/sanscope/internal/database"
	"github.com/sanscope/sanscope/internal/service"
	"github.com/sanscope/sanscope/pkg/logger"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Infof("starting sanscope server, %d capture workers", cfg.Capture.Workers)

	if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
		logger.Fatalf("initialize database: %v", err)
	}
	defer database.Close()

	captureService := service.NewCaptureService(cfg, database.GetDB())
	ctx := context.Background()
	if err := captureService.Start(ctx); err != nil {
		logger.Fatalf("start capture service: %v", err)
	}
	defer captureService.Stop()

	multicaptureService := service.NewMulticaptureService(cfg)

	r := router.SetupRouter(cfg, database.GetDB(), captureService, multicaptureService)

	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		logger.Infof("server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("start server: %v", err)
		}
	}()

	// 配置文件监听与热更新
	go watchConfig(cfg, "configs/config.yaml")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	} else {
		logger.Info("server shutdown complete")
	}
}

// watchConfig 监听配置文件变更并原地热更新
func watchConfig(cfg *config.Config, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("config watch init failed: %v", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.Warnf("config watch add failed: %v", err)
		return
	}

	var debounce *time.Timer
	const debounceInterval = 300 * time.Millisecond
	trigger := func() {
		newCfg, err := config.Load(path)
		if err != nil {
			logger.Warnf("config reload failed: %v", err)
			return
		}
		// 原地覆盖，保持指针不变
		*cfg = *newCfg
		_ = logger.Init(logger.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			FilePath:   cfg.Log.FilePath,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		})
		logger.Info("config reloaded")
	}

	for {
		select {
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceInterval, trigger)
			}
		case err := <-watcher.Errors:
			logger.Warnf("config watch error: %v", err)
		}
	}
}
