package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sanscope/sanscope/api/handler"
	"github.com/sanscope/sanscope/internal/config"
	"github.com/sanscope/sanscope/internal/service"
	"github.com/sanscope/sanscope/pkg/logger"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, db *gorm.DB, captureService *service.CaptureService, multicaptureService *service.MulticaptureService) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())

	captureHandler := handler.NewCaptureHandler(captureService)
	multicaptureHandler := handler.NewMulticaptureHandler(multicaptureService)
	statsHandler := handler.NewStatsHandler(cfg, db)
	zoneHandler := handler.NewZoneHandler(cfg)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "sanscope",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", captureHandler.Health)

		capture := v1.Group("/capture")
		{
			capture.POST("/tasks", captureHandler.Submit)
			capture.GET("/tasks", captureHandler.ListTasks)
			capture.GET("/tasks/:task_id", captureHandler.GetTaskStatus)
			capture.POST("/tasks/:task_id/cancel", captureHandler.CancelTask)
			capture.GET("/tasks/:task_id/file", captureHandler.Download)
		}

		v1.POST("/multicapture", multicaptureHandler.Run)

		stats := v1.Group("/stats")
		{
			stats.POST("/run", statsHandler.Run)
			stats.GET("/samples", statsHandler.QuerySamples)
		}

		zone := v1.Group("/zone")
		{
			zone.POST("/apply", zoneHandler.Apply)
			zone.POST("/enable", zoneHandler.Enable)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     statusCode,
			"duration":   duration.String(),
			"client_ip":  c.ClientIP(),
		})
		if statusCode >= 400 {
			entry.Error("HTTP request failed")
		} else {
			entry.Info("HTTP request")
		}
	}
}
