package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sanscope/sanscope/internal/service"
	"github.com/sanscope/sanscope/pkg/logger"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CaptureHandler 采集任务处理器
type CaptureHandler struct {
	captureService *service.CaptureService
}

// NewCaptureHandler 创建采集任务处理器
func NewCaptureHandler(captureService *service.CaptureService) *CaptureHandler {
	return &CaptureHandler{captureService: captureService}
}

// Submit 提交采集任务
// @Summary 提交交换机采集任务
// @Description 登录交换机 API 并采集配置与状态，任务异步执行
// @Tags capture
// @Accept json
// @Produce json
// @Param request body service.CaptureRequest true "采集请求"
// @Success 202 {object} SuccessResponse "任务已受理"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Router /api/v1/capture/tasks [post]
func (h *CaptureHandler) Submit(c *gin.Context) {
	var request service.CaptureRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Errorf("invalid capture request: %v", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	taskID, err := h.captureService.Submit(&request)
	if err != nil {
		logger.Errorf("submit capture task: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "SUBMIT_FAILED",
			Message: "任务提交失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, SuccessResponse{
		Code:    "ACCEPTED",
		Message: "任务已受理",
		Data:    gin.H{"task_id": taskID},
	})
}

// GetTaskStatus 获取任务状态
// @Summary 获取采集任务状态
// @Tags capture
// @Produce json
// @Param task_id path string true "任务ID"
// @Success 200 {object} model.CaptureTask "任务状态"
// @Failure 404 {object} ErrorResponse "任务不存在"
// @Router /api/v1/capture/tasks/{task_id} [get]
func (h *CaptureHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	task, err := h.captureService.TaskStatus(taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "TASK_NOT_FOUND",
			Message: "任务不存在: " + taskID,
		})
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListTasks 最近任务列表
// @Summary 列出最近的采集任务
// @Tags capture
// @Produce json
// @Param limit query int false "返回条数"
// @Success 200 {array} model.CaptureTask
// @Router /api/v1/capture/tasks [get]
func (h *CaptureHandler) ListTasks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	tasks, err := h.captureService.ListTasks(limit)
	if err != nil {
		logger.Errorf("list capture tasks: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "任务查询失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// CancelTask 取消任务
// @Summary 取消正在执行的采集任务
// @Tags capture
// @Produce json
// @Param task_id path string true "任务ID"
// @Success 200 {object} SuccessResponse "取消成功"
// @Failure 404 {object} ErrorResponse "任务不存在"
// @Router /api/v1/capture/tasks/{task_id}/cancel [post]
func (h *CaptureHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("task_id")
	if err := h.captureService.Cancel(taskID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "TASK_NOT_FOUND",
			Message: "任务不存在: " + taskID,
		})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "CANCELLED",
		Message: "任务已取消",
		Data:    gin.H{"task_id": taskID},
	})
}

// Download 下载采集结果
// @Summary 下载采集任务的落盘结果
// @Tags capture
// @Produce application/json
// @Param task_id path string true "任务ID"
// @Success 200 {file} file "采集结果"
// @Failure 404 {object} ErrorResponse "任务或文件不存在"
// @Router /api/v1/capture/tasks/{task_id}/file [get]
func (h *CaptureHandler) Download(c *gin.Context) {
	taskID := c.Param("task_id")
	task, err := h.captureService.TaskStatus(taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "TASK_NOT_FOUND",
			Message: "任务不存在: " + taskID,
		})
		return
	}
	if !strings.HasPrefix(task.Output, "file://") {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "FILE_NOT_AVAILABLE",
			Message: "任务结果不在本地存储: " + task.Output,
		})
		return
	}
	c.FileAttachment(strings.TrimPrefix(task.Output, "file://"), taskID+".json")
}

// Health 健康检查
// @Summary 服务健康检查
// @Tags system
// @Produce json
// @Success 200 {object} gin.H
// @Router /api/v1/health [get]
func (h *CaptureHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
